// Package utils holds the ambient plumbing shared by the pr-tool command:
// ConfigurationLoader layers embedded defaults, config files, and PRTOOL_
// environment variables through Viper; LoggerFactory builds zap loggers; and
// FlushingWriter keeps console output ordered.
package utils
