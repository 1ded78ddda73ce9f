// Package archive keeps a copy of ingested source files before they are
// deleted from the upload directory.
package archive
