package jobs

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/INLOpen/primetree/compressors"
	"github.com/INLOpen/primetree/core"
	"github.com/INLOpen/primetree/merge"
	"github.com/INLOpen/primetree/stats"
)

// compression suffix per type; none has no suffix so plain job files from
// other producers keep working unchanged.
var compressionSuffix = map[core.CompressionType]string{
	core.CompressionNone:   "",
	core.CompressionSnappy: ".sz",
	core.CompressionLZ4:    ".lz4",
	core.CompressionZSTD:   ".zst",
}

var suffixCompression = map[string]core.CompressionType{
	"sz":  core.CompressionSnappy,
	"lz4": core.CompressionLZ4,
	"zst": core.CompressionZSTD,
}

// Metadata is the companion sidecar for a job tree file, carrying the
// parameters the binary format itself does not store.
type Metadata struct {
	RunID       string    `cbor:"run_id"`
	PrimeType   string    `cbor:"prime_type"`
	Base        int       `cbor:"base"`
	Root        string    `cbor:"root"`
	MaxLength   uint32    `cbor:"max_length"`
	Compression string    `cbor:"compression"`
	Digest      uint64    `cbor:"xxhash"`
	CreatedAt   time.Time `cbor:"created_at"`
}

// Store reads and writes job partitions under one directory. Writers own
// their partition exclusively; readers never mutate, so a job set can be
// merged any number of times without re-running jobs.
type Store struct {
	Dir        string
	Compressor core.Compressor
	Logger     *slog.Logger
}

var _ merge.PartitionSet = (*Store)(nil)

// NewStore creates the directory if needed.
func NewStore(dir string, compressor core.Compressor, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating partition dir %s: %w", dir, err)
	}
	return &Store{Dir: dir, Compressor: compressor, Logger: logger}, nil
}

// writeFile writes an uncompressed file into the partition directory.
func (s *Store) writeFile(name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// WriteTree stores a job subtree stream with its metadata sidecar.
func (s *Store) WriteTree(root string, data []byte, meta Metadata) error {
	ct := core.CompressionNone
	out := data
	if s.Compressor != nil {
		var err error
		if out, err = s.Compressor.Compress(data); err != nil {
			return fmt.Errorf("compressing partition %s: %w", root, err)
		}
		ct = s.Compressor.Type()
	}
	name := TreeFileName(root) + compressionSuffix[ct]
	if err := os.WriteFile(filepath.Join(s.Dir, name), out, 0o644); err != nil {
		return fmt.Errorf("writing partition %s: %w", root, err)
	}

	if meta.RunID == "" {
		meta.RunID = uuid.NewString()
	}
	meta.Root = root
	meta.Compression = ct.String()
	meta.Digest = xxhash.Sum64(data)
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	enc, err := cbor.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", root, err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir, MetaFileName(root)), enc, 0o644); err != nil {
		return fmt.Errorf("writing metadata for %s: %w", root, err)
	}
	return nil
}

// Tree implements merge.PartitionSet, decompressing as needed and checking
// the sidecar digest when one is present.
func (s *Store) Tree(root string) ([]byte, bool, error) {
	name, ct, ok, err := s.findTree(root)
	if err != nil || !ok {
		return nil, false, err
	}
	raw, err := os.ReadFile(filepath.Join(s.Dir, name))
	if err != nil {
		return nil, false, fmt.Errorf("reading partition %s: %w", root, err)
	}
	data := raw
	if ct != core.CompressionNone {
		c, err := compressors.New(ct)
		if err != nil {
			return nil, false, err
		}
		rc, err := c.Decompress(raw)
		if err != nil {
			return nil, false, fmt.Errorf("decompressing partition %s: %w", root, err)
		}
		defer rc.Close()
		if data, err = io.ReadAll(rc); err != nil {
			return nil, false, fmt.Errorf("decompressing partition %s: %w", root, err)
		}
	}

	// A partition without a sidecar is legal (produced elsewhere); a
	// sidecar that exists but does not decode is not.
	meta, err := s.ReadMetadata(root)
	if err != nil {
		if os.IsNotExist(err) {
			return data, true, nil
		}
		return nil, false, err
	}
	if meta.Digest != 0 {
		if got := xxhash.Sum64(data); got != meta.Digest {
			return nil, false, fmt.Errorf("partition %s: %w: xxhash %d, sidecar says %d",
				root, core.ErrHashMismatch, got, meta.Digest)
		}
	}
	return data, true, nil
}

// Roots implements merge.PartitionSet by scanning the directory.
func (s *Store) Roots() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("scanning partition dir: %w", err)
	}
	var roots []string
	for _, e := range entries {
		if m := treeFilePattern.FindStringSubmatch(e.Name()); m != nil {
			roots = append(roots, m[1])
		}
	}
	return roots, nil
}

// findTree locates the tree file for a root, trying the plain name first
// and then each compression suffix.
func (s *Store) findTree(root string) (string, core.CompressionType, bool, error) {
	base := TreeFileName(root)
	if _, err := os.Stat(filepath.Join(s.Dir, base)); err == nil {
		return base, core.CompressionNone, true, nil
	}
	for suffix, ct := range suffixCompression {
		name := base + "." + suffix
		if _, err := os.Stat(filepath.Join(s.Dir, name)); err == nil {
			return name, ct, true, nil
		}
	}
	return "", core.CompressionNone, false, nil
}

// ReadRootTree loads the root pass stream.
func (s *Store) ReadRootTree() ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, RootTreeFile))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", RootTreeFile, err)
	}
	return data, nil
}

// WriteMergedTree stores the combined stream the merger produced. The
// merged tree is always written uncompressed; it is the pipeline's final
// artifact, not a partition in transit.
func (s *Store) WriteMergedTree(data []byte) error {
	return s.writeFile(MergedTreeFile, data)
}

// ReadMetadata loads a partition's sidecar.
func (s *Store) ReadMetadata(root string) (*Metadata, error) {
	raw, err := os.ReadFile(filepath.Join(s.Dir, MetaFileName(root)))
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := cbor.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decoding metadata for %s: %w", root, err)
	}
	return &meta, nil
}

// WriteStats stores a stats table for a frontier value ("" for the root
// pass table).
func (s *Store) WriteStats(root string, t *stats.Table) error {
	name := RootStatsFile
	if root != "" {
		name = StatsFileName(root)
	}
	f, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return fmt.Errorf("creating stats file for %q: %w", root, err)
	}
	defer f.Close()
	if err := stats.Write(f, t); err != nil {
		return fmt.Errorf("writing stats for %q: %w", root, err)
	}
	return f.Close()
}

// ReadStats loads a stats table for a frontier value ("" for the root pass
// table). A missing file maps to core.ErrMissingJobStats.
func (s *Store) ReadStats(root string) (*stats.Table, error) {
	name := RootStatsFile
	if root != "" {
		name = StatsFileName(root)
	}
	f, err := os.Open(filepath.Join(s.Dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrMissingJobStats, name)
		}
		return nil, err
	}
	defer f.Close()
	t, err := stats.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return t, nil
}

// ReadManifest loads the partition directory's manifest.
func (s *Store) ReadManifest() ([]string, error) {
	f, err := os.Open(filepath.Join(s.Dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()
	return ReadManifest(f)
}

// WriteManifest stores the partition directory's manifest.
func (s *Store) WriteManifest(roots []string) error {
	f, err := os.Create(filepath.Join(s.Dir, ManifestFile))
	if err != nil {
		return fmt.Errorf("creating manifest: %w", err)
	}
	defer f.Close()
	if err := WriteManifest(f, roots); err != nil {
		return err
	}
	return f.Close()
}

// JobTables loads every manifest entry's stats table, in manifest order.
// Any missing table fails the whole load; partial aggregation is not a
// supported mode.
func (s *Store) JobTables(roots []string) ([]stats.JobStats, error) {
	out := make([]stats.JobStats, 0, len(roots))
	for _, root := range roots {
		t, err := s.ReadStats(root)
		if err != nil {
			return nil, err
		}
		out = append(out, stats.JobStats{Root: root, Table: t})
	}
	return out, nil
}
