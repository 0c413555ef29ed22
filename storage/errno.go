package storage

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-nufs/common"
)

var errnos = []struct {
	err   error
	errno unix.Errno
}{
	{common.ErrNotFound, unix.ENOENT},
	{common.ErrExists, unix.EEXIST},
	{common.ErrNotEmpty, unix.ENOTEMPTY},
	{common.ErrExhausted, unix.ENOSPC},
	{common.ErrIO, unix.EIO},
	{common.ErrNameTooLong, unix.ENAMETOOLONG},
	{common.ErrNotDir, unix.ENOTDIR},
	{common.ErrIsDir, unix.EISDIR},
	{common.ErrInvalid, unix.EINVAL},
	{common.ErrTooBig, unix.EFBIG},
}

// Errno maps an error returned by Storage to the errno a filesystem adapter
// reports. Errors it does not recognize become EIO.
func Errno(err error) unix.Errno {
	if err == nil {
		return 0
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	for _, e := range errnos {
		if errors.Is(err, e.err) {
			return e.errno
		}
	}
	return unix.EIO
}
