// Package logger provides structured logging on top of zerolog.
//
// It supports JSON and console output, level configuration and
// component-scoped loggers carrying map-based fields.
//
//	logging:
//	  level: "debug"
//	  format: "json"
//
//	log := logger.NewDefault("scalestore").WithComponent("docstore")
//	log.Debug("record saved", logger.Fields("table", "settings", "record_id", "cooldown"))
package logger
