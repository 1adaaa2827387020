// Package config loads environment-based configuration into typed structs.
//
// It is a thin wrapper around github.com/caarlos0/env that additionally
// loads a .env file (via godotenv) once per process, so development
// environments behave like twelve-factor deployments.
//
// Each package in this repository declares its own Config struct with
// `env` tags and default values; the composition root loads them all at
// startup:
//
//	var httpCfg httpserver.Config
//	config.MustLoad(&httpCfg)
package config
