package logger

import "go.uber.org/zap"

// Newは環境に応じたzapロガーを返す。
func New(goEnv string) (*zap.Logger, error) {
	if goEnv == "production" || goEnv == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
