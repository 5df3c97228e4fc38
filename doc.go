// Package httplog is a log-rotation pipe target. It reads log lines from a
// stream (usually a web server's piped log on standard input) and writes each
// line into the file named by a time-based template, for example
// /var/log/www/access-%Y%m%d.log. When the evaluated name changes the old file
// is closed, optionally compressed in the background, and the new file is
// opened. A symbolic link can be kept pointing at the current file.
//
// Apache example:
//
//	CustomLog "|/usr/local/bin/httplog /var/log/www/ex%Y%m%d.log" combined
//
// The Run loop owns the open file. Signals are delivered to it on a channel:
// SIGHUP flushes the write buffer, SIGTERM and SIGINT flush and stop.
//
//	https://pkg.go.dev/golift.io/httplog/pathtmpl
//	https://pkg.go.dev/golift.io/httplog/compressor
package httplog
