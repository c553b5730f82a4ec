// Package logging provides file-based JSON logging with rotation for docsearchd.
// Every command that loads the app writes logs to ~/.docsearch/logs/docsearchd.log
// (or logging.file_path) at info level, mirrored to stderr when
// logging.also_stderr is set. The --debug flag lowers the level to debug.
package logging
