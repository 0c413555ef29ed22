package dir

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-nufs/common"
)

// Name is a validated directory entry name: 1 to NAMELEN bytes, without '/'
// or NUL. Longer names are rejected rather than truncated.
type Name string

func MkName(s string) (Name, error) {
	if s == "" || strings.ContainsAny(s, "/\x00") {
		return "", fmt.Errorf("name %q: %w", s, common.ErrInvalid)
	}
	if uint64(len(s)) > common.NAMELEN {
		return "", fmt.Errorf("name %q: %w", s, common.ErrNameTooLong)
	}
	return Name(s), nil
}

// Dirent is one fixed-size directory record:
//
//	[ name (48, NUL-padded) | inum (4) | used (1) | reserved (11) ]
type Dirent struct {
	Name Name
	Inum common.Inum
	Used bool
}

func encodeDirent(de Dirent) []byte {
	rec := make([]byte, common.DIRENTSZ)
	copy(rec[:common.NAMELEN], string(de.Name))
	enc := marshal.NewEnc(4)
	enc.PutInt32(uint32(de.Inum))
	copy(rec[common.NAMELEN:common.NAMELEN+4], enc.Finish())
	if de.Used {
		rec[common.NAMELEN+4] = 1
	}
	return rec
}

func decodeDirent(rec []byte) Dirent {
	name := rec[:common.NAMELEN]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	dec := marshal.NewDec(rec[common.NAMELEN : common.NAMELEN+4])
	return Dirent{
		Name: Name(name),
		Inum: common.Inum(dec.GetInt32()),
		Used: rec[common.NAMELEN+4] != 0,
	}
}
