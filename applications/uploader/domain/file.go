package domain

import "io"

type FileMeta struct {
	Name          string
	ContentType   string
	ContentLength int64
}

type File struct {
	Meta FileMeta
	Body io.Reader
}
