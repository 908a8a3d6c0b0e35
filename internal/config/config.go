package config

import (
	"encoding/json"
	"os"

	"github.com/truongcongthanh2000/command-trade/internal/models"
)

// LoadConfig 从指定路径加载JSON配置文件并解析到Config结构体中,
// 对缺省字段填入默认值。
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	config := &models.Config{}
	err = decoder.Decode(config)
	if err != nil {
		return nil, err
	}

	applyDefaults(config)
	return config, nil
}

// applyDefaults 填充未配置的字段。
func applyDefaults(cfg *models.Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://fapi.binance.com"
	}
	if cfg.WSBaseURL == "" {
		cfg.WSBaseURL = "wss://fstream.binance.com"
	}
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	if cfg.ReportTimezone == "" {
		cfg.ReportTimezone = "Asia/Ho_Chi_Minh"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "data/journal"
	}
	if cfg.Telegram.ROISignal == 0 {
		cfg.Telegram.ROISignal = 10
	}
}
