// Package config loads service configuration with Viper.
//
// A YAML file (config.yml) provides the base values, a .env file and the
// process environment override them. Environment variables map onto
// nested keys by splitting on underscores, so STORE_REDIS_ADDR reaches
// store.redis.addr:
//
//	var cfg app.Config
//	err := config.LoadConfig("scalestore", &cfg, config.WithConfigFile("config.yml"))
package config
