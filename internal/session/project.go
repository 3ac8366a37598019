package session

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"

	"github.com/leapstack-labs/cruiseqc/internal/catalog"
	"github.com/leapstack-labs/cruiseqc/internal/dataset"
	"github.com/leapstack-labs/cruiseqc/internal/loader"
	"github.com/leapstack-labs/cruiseqc/internal/state"
)

// ProjectInfo describes where the live dataset came from.
type ProjectInfo struct {
	Source    string         `json:"source"`
	Format    dataset.Format `json:"format"`
	FirstLine string         `json:"first_line"`
	Metadata  []string       `json:"metadata,omitempty"`
	Hash      string         `json:"hash"`
	SavedAt   time.Time      `json:"saved_at"`
}

// ContentHash identifies the content of a source file.
func ContentHash(data []byte) string {
	sum := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(sum[:])
}

// restore rebuilds the live dataset from the store. A project without a saved
// catalog or working copy simply has no dataset yet.
func (s *Session) restore() error {
	cat := catalog.New(nil)
	found, err := s.store.ReadJSON(state.KeyColumns, cat)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	records, err := s.store.ReadTable(DataFile)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("column catalog found without a working copy, ignoring it")
		return nil
	}
	if err != nil {
		return err
	}

	ds, err := loader.Restore(records, cat, loader.ScopeFreshLoad)
	if err != nil {
		return fmt.Errorf("failed to restore working copy: %w", err)
	}
	var info ProjectInfo
	if _, err := s.store.ReadJSON(state.KeyProjectInfo, &info); err != nil {
		return err
	}
	ds.Source = dataset.Source{
		Path:      info.Source,
		Format:    info.Format,
		FirstLine: info.FirstLine,
		Metadata:  info.Metadata,
	}
	if ds.Moves, err = s.store.ListMoves(); err != nil {
		return err
	}

	var active []string
	if _, err := s.store.ReadJSON(state.KeyComputed, &active); err != nil {
		return err
	}
	s.computed.SetActive(active)

	s.adopt(ds)
	s.logger.Info("project restored",
		slog.String("source", info.Source),
		slog.Int("rows", ds.Table.Len()),
		slog.Int("columns", ds.Catalog.Len()),
	)
	return nil
}

func (s *Session) adopt(ds *dataset.Dataset) {
	if s.cfg.Clock != nil {
		ds.SetClock(s.cfg.Clock)
	}
	s.dataset = ds
}

// save writes the working copy, the catalog, the source description and the
// audit log of ds.
func (s *Session) save(ds *dataset.Dataset) error {
	hash, err := s.store.GetSourceHash(ds.Source.Path)
	if err != nil {
		return err
	}
	return s.saveWithHash(ds, hash)
}

// saveWithHash is save for a source whose content hash is not stored yet.
func (s *Session) saveWithHash(ds *dataset.Dataset, hash string) error {
	if err := s.store.WriteTable(DataFile, ds.Table.Records()); err != nil {
		return err
	}
	if err := s.store.WriteJSON(state.KeyColumns, ds.Catalog); err != nil {
		return err
	}
	info := ProjectInfo{
		Source:    ds.Source.Path,
		Format:    ds.Source.Format,
		FirstLine: ds.Source.FirstLine,
		Metadata:  ds.Source.Metadata,
		Hash:      hash,
		SavedAt:   ds.Now().UTC(),
	}
	if err := s.store.WriteJSON(state.KeyProjectInfo, info); err != nil {
		return err
	}
	return s.store.AppendMoves(ds.Moves)
}

// Save persists the live dataset.
func (s *Session) Save() error {
	ds, err := s.require()
	if err != nil {
		return err
	}
	return s.save(ds)
}

// PersistComputed implements computed.Persister.
func (s *Session) PersistComputed(active []string) error {
	if active == nil {
		active = []string{}
	}
	return s.store.WriteJSON(state.KeyComputed, active)
}

// Info returns the stored project description.
func (s *Session) Info() (ProjectInfo, bool, error) {
	var info ProjectInfo
	found, err := s.store.ReadJSON(state.KeyProjectInfo, &info)
	return info, found, err
}

// archiveOriginal compresses the current original.csv into the archive file,
// replacing any previous archive.
func (s *Session) archiveOriginal() error {
	data, err := os.ReadFile(s.path(OriginalFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read original source: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	defer func() { _ = enc.Close() }()

	if err := writeFileAtomic(s.path(ArchiveFile), enc.EncodeAll(data, nil)); err != nil {
		return fmt.Errorf("failed to archive original source: %w", err)
	}
	return nil
}

// ReadArchive returns the superseded original source.
func (s *Session) ReadArchive() ([]byte, error) {
	data, err := os.ReadFile(s.path(ArchiveFile))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return raw, nil
}

// keepSource copies the raw source into the project as original.csv and records
// its content hash under both paths. It runs after the dataset is saved, so a
// failed save never marks the new source as already taken in.
func (s *Session) keepSource(path string, data []byte) error {
	if err := writeFileAtomic(s.path(OriginalFile), data); err != nil {
		return fmt.Errorf("failed to store original source: %w", err)
	}
	hash := ContentHash(data)
	if err := s.store.SetSourceHash(path, hash); err != nil {
		return err
	}
	return s.store.SetSourceHash(OriginalFile, hash)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
