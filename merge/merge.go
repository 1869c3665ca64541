package merge

import (
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/skdltmxn/cvmerge/internal/cv"
	"github.com/skdltmxn/cvmerge/internal/logflags"
	"github.com/skdltmxn/cvmerge/internal/par"
)

// Options configures a merge.
type Options struct {
	// Workers is the width of every parallel phase; 0 means GOMAXPROCS.
	Workers int

	// LibPaths are searched for type servers by base name.
	LibPaths []string

	// DeepVerify compares leaf contents before merging leaves with equal
	// hashes. Hash equality alone is used otherwise.
	DeepVerify bool

	// RadixThreshold is the bucket count from which the parallel radix
	// sort is used; 0 means DefaultRadixThreshold.
	RadixThreshold int
}

// Stats summarizes a merge. Leaf counts are indexed by cv.Space.
type Stats struct {
	Objects      int
	Discarded    int
	TypeServers  int
	InputLeaves  [2]int
	UniqueLeaves [2]int
}

// Result is the output of Merge.
type Result struct {
	// Types and IDs are the merged TPI and IPI leaves. The leaf at
	// position i has type index MinComplexIndex+i.
	Types []cv.Record
	IDs   []cv.Record

	// Objects are the inputs with their symbols and inlinee lines patched.
	Objects []*Object

	TypeServers []*TypeServer

	Stats Stats

	// Warnings combines every recoverable input error, or is nil.
	Warnings error
}

// Context holds the state shared by the phases of one merge.
type Context struct {
	objs    []*object
	servers []*server
	tables  [2]*Table
	workers int
	log     *logrus.Entry
}

func newContext(objs []*Object, workers int) *Context {
	c := &Context{
		objs:    make([]*object, len(objs)),
		workers: par.Workers(workers),
		log:     logflags.MergeLogger(),
	}
	for i, o := range objs {
		c.objs[i] = newObject(o, i)
	}
	return c
}

// Merge deduplicates the type records of objs and the type servers they
// reference and rewrites every type index to the merged numbering. The
// objects' symbol and inlinee data are patched in place.
//
// Recoverable input errors are collected in Result.Warnings. The returned
// error is non-nil only when the merge cannot produce a result.
func Merge(objs []*Object, opts Options) (*Result, error) {
	c := newContext(objs, opts.Workers)
	threshold := opts.RadixThreshold
	if threshold <= 0 {
		threshold = DefaultRadixThreshold
	}

	var warnings []error
	report := func(phase string, errs []error) {
		for _, err := range errs {
			c.log.WithField("phase", phase).Warn(err)
		}
		warnings = append(warnings, errs...)
	}

	report("typeserver", c.discoverTypeServers(opts.LibPaths))
	errs, err := c.wireLeaves()
	report("pch", errs)
	if err != nil {
		return nil, err
	}
	report("scan", c.scan())
	report("hash", c.hash())

	var equal func(a, b LeafRef) bool
	if opts.DeepVerify {
		equal = c.sameLeaf
	}
	stats, err := c.insert(equal)
	if err != nil {
		return nil, err
	}

	srt := newSorter(c.workers, threshold, len(c.objs), len(c.servers))
	var buckets [2][]*Bucket
	var out [2][]cv.Record
	for space := range buckets {
		buckets[space] = srt.sort(extract(c.tables[space], c.workers))
		assignIndices(buckets[space], c.workers)
		out[space] = c.unbucket(buckets[space])
		stats.UniqueLeaves[space] = len(buckets[space])
	}
	c.log.Debugf("merged %d+%d leaves into %d+%d",
		stats.InputLeaves[cv.SpaceTPI], stats.InputLeaves[cv.SpaceIPI],
		stats.UniqueLeaves[cv.SpaceTPI], stats.UniqueLeaves[cv.SpaceIPI])

	report("patch", c.patch(buckets, out))

	res := &Result{
		Types:    out[cv.SpaceTPI],
		IDs:      out[cv.SpaceIPI],
		Objects:  objs,
		Stats:    stats,
		Warnings: multierr.Combine(warnings...),
	}
	for _, ts := range c.servers {
		res.TypeServers = append(res.TypeServers, ts.TypeServer)
	}
	res.Stats.Objects = len(objs)
	res.Stats.TypeServers = len(c.servers)
	for _, o := range objs {
		if o.Discarded {
			res.Stats.Discarded++
		}
	}
	return res, nil
}

// locations returns the type servers followed by the usable objects
// selected by keep.
func (c *Context) locations(servers bool, keep func(o *object) bool) []uint32 {
	var locs []uint32
	if servers {
		for i := range c.servers {
			locs = append(locs, uint32(i)|ExternalFlag)
		}
	}
	for _, o := range c.objs {
		if !o.Discarded && keep(o) {
			locs = append(locs, uint32(o.idx))
		}
	}
	return locs
}

func allObjects(*object) bool { return true }

// scan locates the type-index fields of every leaf.
func (c *Context) scan() []error {
	locs := c.locations(true, allObjects)
	diags := newSink(c.workers)
	_ = par.Each(c.workers, len(locs), func(w, i int) error {
		loc := locs[i]
		c.scanLeaves(loc, c.array(loc, cv.SpaceTPI), &diags[w])
		if loc&ExternalFlag != 0 {
			c.scanLeaves(loc, c.array(loc, cv.SpaceIPI), &diags[w])
		}
		return nil
	})
	return diags.errors()
}

// hash hashes type servers and precompiled-header objects, then every
// other object, since only the latter reference leaves of other locations.
func (c *Context) hash() []error {
	diags := newSink(c.workers)
	for _, locs := range [][]uint32{
		c.locations(true, func(o *object) bool { return o.isPCHSource }),
		c.locations(false, func(o *object) bool { return !o.isPCHSource }),
	} {
		_ = par.Each(c.workers, len(locs), func(w, i int) error {
			c.hashLocation(locs[i], &diags[w])
			return nil
		})
	}
	return diags.errors()
}

// insert sizes the dedup tables and inserts every hashed leaf.
func (c *Context) insert(equal func(a, b LeafRef) bool) (Stats, error) {
	var stats Stats
	for _, s := range c.servers {
		for space := range s.arrays {
			stats.InputLeaves[space] += s.arrays[space].len()
		}
	}
	for _, o := range c.objs {
		for _, rec := range o.leaves.recs {
			stats.InputLeaves[rec.LeafKind().Space()]++
		}
	}
	for space := range c.tables {
		c.tables[space] = NewTable(TableCapacity(stats.InputLeaves[space]), equal)
	}

	locs := c.locations(true, allObjects)
	err := par.Each(c.workers, len(locs), func(_, i int) error {
		loc := locs[i]
		if loc&ExternalFlag != 0 {
			ts := int(loc &^ ExternalFlag)
			for space := range c.servers[ts].arrays {
				arr := &c.servers[ts].arrays[space]
				for pos, h := range arr.hashes {
					if arr.malformed[pos] {
						continue
					}
					if _, err := c.tables[space].InsertOrUpdate(h, externalRef(ts, pos, cv.Space(space))); err != nil {
						return err
					}
				}
			}
			return nil
		}
		o := c.objs[loc]
		for pos, h := range o.leaves.hashes {
			if o.leaves.malformed[pos] {
				continue
			}
			space := o.leaves.recs[pos].LeafKind().Space()
			if _, err := c.tables[space].InsertOrUpdate(h, internalRef(o.idx, pos, space)); err != nil {
				return err
			}
		}
		return nil
	})
	return stats, err
}
