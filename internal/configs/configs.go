package configs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/songzhibin97/tradeflux/internal/backtest"
	"github.com/songzhibin97/tradeflux/internal/order"
	"github.com/songzhibin97/tradeflux/internal/risk"
	"github.com/songzhibin97/tradeflux/internal/strategy"
)

type Config struct {
	// 基础配置
	Symbols         []string `json:"symbols" yaml:"symbols"`                   // 交易对列表
	RefreshInterval string   `json:"refresh_interval" yaml:"refresh_interval"` // 数据刷新间隔
	Proxy           string   `json:"proxy" yaml:"proxy"`                       // HTTP代理地址, 可选

	Database Database `json:"database" yaml:"database"`

	// 风险控制参数
	RiskParams risk.Parameters `json:"risk_params" yaml:"risk_params"`

	// 订单生命周期参数
	OrderManager order.Config `json:"order_manager" yaml:"order_manager"`

	// 策略参数
	Strategy strategy.SMARSIConfig `json:"strategy" yaml:"strategy"`

	// 回测参数
	Backtest backtest.Config `json:"backtest" yaml:"backtest"`

	// AI顾问参数
	Advisor AdvisorConfig `json:"advisor" yaml:"advisor"`

	// 交易参数
	TradingConfig TradingConfig `json:"trading_config" yaml:"trading_config"`

	// 交易所配置
	ExchangeConfig ExchangeConfig `json:"exchange_config" yaml:"exchange_config"`
}

type AdvisorConfig struct {
	Enabled   bool    `json:"enabled" yaml:"enabled"`
	Provider  string  `json:"provider" yaml:"provider"`     // openai 或 deepseek
	APIKey    string  `json:"api_key" yaml:"api_key"`       // AI服务API密钥
	ModelType string  `json:"model_type" yaml:"model_type"` // AI模型类型
	MinScore  float64 `json:"min_score" yaml:"min_score"`   // 低于此分数的信号被跳过
}

type TradingConfig struct {
	Equity         float64 `json:"equity" yaml:"equity"`                     // 账户权益, 用于仓位计算
	StopLossPct    float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`       // 止损比例
	MaxOrderAmount float64 `json:"max_order_amount" yaml:"max_order_amount"` // 单笔最大交易量
	MinOrderAmount float64 `json:"min_order_amount" yaml:"min_order_amount"` // 单笔最小交易量
	OrderType      string  `json:"order_type" yaml:"order_type"`             // 订单类型(market/limit)
}

type Database struct {
	ConnStr string `json:"conn_str" yaml:"conn_str"` // 数据库连接字符串
}

type ExchangeConfig struct {
	Debug     bool   `json:"debug" yaml:"debug"`
	APIKey    string `json:"api_key" yaml:"api_key"`       // 交易所API密钥
	SecretKey string `json:"secret_key" yaml:"secret_key"` // 交易所密钥
}

// Load reads a config file, choosing the decoder by extension. Both JSON
// and YAML are accepted.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	config := &Config{}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, config); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(raw, config); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension %q", ext)
	}

	return config, nil
}
