// Package ui renders human-readable console output.
//
// ConsoleReporter prints the colored status lines users read, while
// ConsoleCommandEventLogger turns git lifecycle events into concise log
// messages so detailed telemetry keeps flowing through zap.
package ui
