package merge

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/skdltmxn/cvmerge/internal/cv"
	"github.com/skdltmxn/cvmerge/internal/logflags"
	"github.com/skdltmxn/cvmerge/internal/par"
	"github.com/skdltmxn/cvmerge/pdb"
)

// tsRequest is one distinct LF_TYPESERVER2 reference and the objects
// that carry it.
type tsRequest struct {
	name string
	guid [16]byte
	objs []int

	ts  *TypeServer
	err error
}

// discoverTypeServers opens the type server of every object that has one
// and wires the object to its descriptor. A server that cannot be used is
// reported once and the objects that depend on it are discarded.
func (c *Context) discoverTypeServers(libPaths []string) []error {
	log := logflags.TypeServerLogger()

	var warnings []error
	var reqs []*tsRequest
	byKey := make(map[string]*tsRequest)
	for _, o := range c.objs {
		if len(o.Types) == 0 || o.Types[0].LeafKind() != cv.LF_TYPESERVER2 {
			continue
		}
		ref, err := cv.ParseTypeServer2(o.Types[0])
		if err != nil {
			warnings = append(warnings, &InputError{Source: o.Path, Record: 0, Offset: -1, Err: fmt.Errorf("%w: %w", ErrMalformedRecord, err)})
			o.discard()
			continue
		}
		key := ref.Name + "\x00" + string(ref.GUID[:])
		req := byKey[key]
		if req == nil {
			req = &tsRequest{name: ref.Name, guid: ref.GUID}
			byKey[key] = req
			reqs = append(reqs, req)
		}
		req.objs = append(req.objs, o.idx)
	}

	_ = par.Each(c.workers, len(reqs), func(_, i int) error {
		req := reqs[i]
		req.ts, req.err = loadTypeServer(req.name, req.guid, libPaths)
		return nil
	})

	// Descriptors are keyed by (path, GUID) and numbered in that order.
	byFile := make(map[string]*server)
	for _, req := range reqs {
		if req.err != nil {
			warnings = append(warnings, &InputError{Source: req.name, Record: -1, Offset: -1, Err: req.err})
			for _, i := range req.objs {
				log.Debugf("discarding %s: type server %s unusable", c.objs[i].Path, req.name)
				c.objs[i].discard()
			}
			continue
		}
		key := req.ts.Path + "\x00" + string(req.ts.GUID[:])
		if byFile[key] == nil {
			s := &server{TypeServer: req.ts}
			byFile[key] = s
			c.servers = append(c.servers, s)
		}
	}
	slices.SortFunc(c.servers, func(a, b *server) int {
		if n := strings.Compare(a.Path, b.Path); n != 0 {
			return n
		}
		return bytes.Compare(a.GUID[:], b.GUID[:])
	})
	for i, s := range c.servers {
		s.idx = i
		s.arrays[cv.SpaceTPI] = newLeafArray(s.Types)
		s.arrays[cv.SpaceIPI] = newLeafArray(s.IDs)
		if logflags.TypeServer() {
			log.Debugf("type server %d: %s (%d types, %d ids)", i, s.Path, len(s.Types), len(s.IDs))
		}
	}
	for _, req := range reqs {
		if req.err != nil {
			continue
		}
		s := byFile[req.ts.Path+"\x00"+string(req.ts.GUID[:])]
		for _, i := range req.objs {
			c.objs[i].typeServer = s.idx
		}
	}
	return warnings
}

// candidates lists the paths at which the type server name may be found:
// the recorded path, then its base name under each library path.
func candidates(name string, libPaths []string) []string {
	// Recorded paths usually come from Windows builds.
	base := name
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		base = name[i+1:]
	}
	paths := []string{name}
	for _, dir := range libPaths {
		paths = append(paths, filepath.Join(dir, base))
	}
	return paths
}

// loadTypeServer finds the one PDB named name whose GUID matches guid
// and reads its type and id streams.
func loadTypeServer(name string, guid [16]byte, libPaths []string) (*TypeServer, error) {
	var found []os.FileInfo
	var matches []string
	var lastErr error
	for _, path := range candidates(name, libPaths) {
		fi, err := os.Stat(path)
		if err != nil || fi.IsDir() {
			continue
		}
		if slices.ContainsFunc(found, func(seen os.FileInfo) bool { return os.SameFile(seen, fi) }) {
			continue
		}
		found = append(found, fi)

		info, err := readIdentity(path)
		if err != nil {
			lastErr = err
			continue
		}
		if info.GUID != guid {
			lastErr = fmt.Errorf("%w: %s has GUID %x, want %x", ErrSignatureMismatch, path, info.GUID, guid)
			continue
		}
		matches = append(matches, path)
	}

	switch {
	case len(found) == 0:
		return nil, ErrTypeServerNotFound
	case len(matches) > 1:
		return nil, fmt.Errorf("%w: %s", ErrTypeServerAmbig, strings.Join(matches, ", "))
	case len(matches) == 0:
		if errors.Is(lastErr, ErrSignatureMismatch) {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%w: %w", ErrTypeServerCorrupt, lastErr)
	}
	return readTypeServer(matches[0])
}

func readIdentity(path string) (*pdb.Info, error) {
	f, err := pdb.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Info()
}

func readTypeServer(path string) (*TypeServer, error) {
	f, err := pdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTypeServerCorrupt, err)
	}
	defer f.Close()

	info, err := f.Info()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTypeServerCorrupt, err)
	}
	types, err := f.Types()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTypeServerCorrupt, err)
	}
	ts := &TypeServer{
		Path:     path,
		GUID:     info.GUID,
		Age:      info.Age,
		Types:    types.Records,
		TypeBase: types.Header.TypeIndexBegin,
		IDBase:   cv.MinComplexIndex,
	}
	ids, err := f.IDs()
	switch {
	case err == nil:
		ts.IDs = ids.Records
		ts.IDBase = ids.Header.TypeIndexBegin
	case !errors.Is(err, pdb.ErrMissingStream):
		return nil, fmt.Errorf("%w: %w", ErrTypeServerCorrupt, err)
	}
	return ts, nil
}
