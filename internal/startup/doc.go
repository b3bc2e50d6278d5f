// Package startup handles configuration loading and the structured
// log output produced while the server boots and shuts down. All
// configuration comes from environment variables; every effective
// value is logged so a container's settings can be read off its log.
package startup
