package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/blackcoderx/apix/pkg/logging"
	"github.com/blackcoderx/apix/pkg/storage"
)

//go:embed schema/collections.schema.json
var collectionsSchemaJSON []byte

var (
	collectionsSchemaOnce sync.Once
	collectionsSchema     *gojsonschema.Schema
	collectionsSchemaErr  error
)

func loadCollectionsSchema() (*gojsonschema.Schema, error) {
	collectionsSchemaOnce.Do(func() {
		collectionsSchema, collectionsSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(collectionsSchemaJSON))
	})
	return collectionsSchema, collectionsSchemaErr
}

var whitespace = regexp.MustCompile(`\s+`)

// LoadCollections replaces the collections with the backend's list for a
// workspace.
func (s *Store) LoadCollections(ctx context.Context, workspaceID string) error {
	if s.collections == nil {
		return nil
	}
	cols, err := s.collections.ListCollections(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("load collections: %w", err)
	}
	s.logger.Debug("collections loaded", logging.Count(len(cols)))
	return s.apply(func(st State) (State, error) { return setCollections(st, cols), nil })
}

// AddCollection creates a collection. Without a backend the collection is
// local and gets a random id.
func (s *Store) AddCollection(ctx context.Context, name string) (storage.Collection, error) {
	name, err := validateName(name)
	if err != nil {
		return storage.Collection{}, err
	}

	col := storage.Collection{ID: s.newID(), Name: name, Requests: []storage.Request{}}
	if s.collections != nil {
		col, err = s.collections.CreateCollection(ctx, s.workspaceID, name)
		if err != nil {
			return storage.Collection{}, fmt.Errorf("create collection: %w", err)
		}
	}

	_ = s.apply(func(st State) (State, error) { return addCollection(st, col), nil })
	s.logger.Info("collection created", logging.CollectionID(col.ID))
	return col, nil
}

// RenameCollection renames a known collection.
func (s *Store) RenameCollection(ctx context.Context, id, name string) error {
	name, err := validateName(name)
	if err != nil {
		return err
	}
	if _, ok := s.Snapshot().Collection(id); !ok {
		return notFound("collection", id)
	}
	if s.collections != nil {
		if err := s.collections.RenameCollection(ctx, id, name); err != nil {
			return fmt.Errorf("rename collection: %w", err)
		}
	}
	return s.apply(func(st State) (State, error) { return renameCollection(st, id, name) })
}

// RemoveCollection deletes a known collection. Its requests stay in the
// draft list.
func (s *Store) RemoveCollection(ctx context.Context, id string) error {
	if _, ok := s.Snapshot().Collection(id); !ok {
		return notFound("collection", id)
	}
	if s.collections != nil {
		if err := s.collections.DeleteCollection(ctx, id); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
	}
	return s.apply(func(st State) (State, error) { return removeCollection(st, id) })
}

// AddRequestToCollection saves a draft into a collection. With a backend the
// saved copy it returns is what gets recorded.
func (s *Store) AddRequestToCollection(ctx context.Context, collectionID, requestID string) error {
	st := s.Snapshot()
	req, ok := st.Request(requestID)
	if !ok {
		return notFound("request", requestID)
	}
	if _, ok := st.Collection(collectionID); !ok {
		return notFound("collection", collectionID)
	}

	saved := req.Clone()
	if s.collections != nil {
		out, err := s.collections.AddRequestToCollection(ctx, collectionID, *req)
		if err != nil {
			s.logger.Warn("saving request to collection failed",
				logging.RequestID(requestID), logging.CollectionID(collectionID), zap.Error(err))
			return fmt.Errorf("add request %s to collection: %w", requestID, err)
		}
		if out.ID != "" {
			saved = &out
		}
	}

	return s.apply(func(st State) (State, error) {
		return appendToCollection(st, collectionID, saved)
	})
}

// ExportCollection renders one collection as a downloadable document: a JSON
// array holding the collection, indented by two spaces.
func (s *Store) ExportCollection(id string) (filename string, data []byte, err error) {
	col, ok := s.Snapshot().Collection(id)
	if !ok {
		return "", nil, notFound("collection", id)
	}
	data, err = json.MarshalIndent([]storage.Collection{col}, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("export collection %s: %w", id, err)
	}
	return ExportFilename(col.Name), data, nil
}

// ExportFilename is the file an exported collection is saved as.
func ExportFilename(name string) string {
	return whitespace.ReplaceAllString(name, "_") + "_collection.json"
}

// ImportCollections validates a collections document and merges the
// collections and requests whose ids are new. Nothing is changed when the
// document is invalid.
func (s *Store) ImportCollections(r io.Reader) (ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read collections: %w", err)
	}
	cols, err := parseCollections(data)
	if err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	_ = s.apply(func(st State) (State, error) {
		next, r := mergeCollections(st, cols)
		res = r
		return next, nil
	})
	s.logger.Info("collections imported",
		zap.Int("collections", res.Collections), zap.Int("requests", res.Requests))
	return res, nil
}

func parseCollections(data []byte) ([]storage.Collection, error) {
	if !json.Valid(data) {
		return nil, invalid("collections file is not valid JSON")
	}

	schema, err := loadCollectionsSchema()
	if err != nil {
		return nil, fmt.Errorf("load collections schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validate collections: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
		}
		return nil, invalid(problems...)
	}

	var cols []storage.Collection
	if err := json.Unmarshal(data, &cols); err != nil {
		return nil, invalid(err.Error())
	}
	for ci := range cols {
		for i := range cols[ci].Requests {
			req := &cols[ci].Requests[i]
			// exports from other tools may spell methods in lower case
			if m, err := storage.ParseMethod(string(req.Method)); err == nil {
				req.Method = m
			}
			if err := req.Validate(); err != nil {
				return nil, invalid(err.Error())
			}
		}
	}
	return cols, nil
}
