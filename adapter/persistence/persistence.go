// Package persistence reads and writes collection dumps: text files holding
// one document per line, or a single array of documents.
package persistence

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"

	"github.com/dolmen-go/contextio"
	"github.com/natefinch/atomic"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/hasher"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/logger"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/uncomparable"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// DeletedMarker flags a line that removes the document with the same _id
// from the ones read before it.
const DeletedMarker = "$$deleted"

// Persistence reads and writes dumps.
type Persistence struct {
	corruptAlertThreshold float64
	maxLineSize           int
	comparer              domain.Comparer
	hasher                domain.Hasher
	logger                domain.Logger
}

// NewPersistence returns a new [Persistence].
func NewPersistence(options ...Option) *Persistence {
	p := &Persistence{
		corruptAlertThreshold: 0.1,
		maxLineSize:           16 << 20,
		comparer:              comparer.NewComparer(),
		hasher:                hasher.NewHasher(),
		logger:                logger.NewDiscardLogger(),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// WriteFile replaces path with docs, one per line. With indent set the file
// holds a single indented array instead. The file is never left half written.
func (p *Persistence) WriteFile(ctx context.Context, path string, docs []*value.Document, indent bool) error {
	toPersist := new(bytes.Buffer)
	wr := contextio.NewWriter(ctx, toPersist)

	if indent {
		arr := make(value.Array, len(docs))
		for n, doc := range docs {
			arr[n] = doc
		}
		if _, err := io.WriteString(wr, value.FormatIndent(arr, "  ")+"\n"); err != nil {
			return err
		}
	} else {
		for _, doc := range docs {
			if _, err := io.WriteString(wr, value.Format(doc)+"\n"); err != nil {
				return err
			}
		}
	}

	if err := atomic.WriteFile(path, toPersist); err != nil {
		return err
	}
	p.logger.Debug("dump written", "path", path, "documents", len(docs))
	return nil
}

// ReadFile reads the dump at path.
func (p *Persistence) ReadFile(ctx context.Context, path string) ([]*value.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return p.Read(ctx, f)
}

// Read reads a dump. Lines that cannot be parsed are skipped unless they
// exceed the corrupt alert threshold. When several lines share an _id the
// last one wins, keeping the position of the first.
func (p *Persistence) Read(ctx context.Context, rawStream io.Reader) ([]*value.Document, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	br := bufio.NewReader(contextio.NewReader(ctx, rawStream))
	if isArray(br) {
		return p.readArray(br)
	}

	var (
		dataByID     = uncomparable.New[*value.Document](p.hasher, p.comparer)
		withoutID    []*value.Document
		corruptItems int
		dataLength   int
	)

	lineStream := bufio.NewScanner(br)
	lineStream.Buffer(nil, p.maxLineSize)
	for lineStream.Scan() {
		line := bytes.TrimSpace(lineStream.Bytes())
		if len(line) == 0 {
			continue
		}
		dataLength++
		doc, err := value.ParseDocument(line)
		if err != nil {
			corruptItems++
			continue
		}
		id, ok := doc.ID()
		if !ok {
			withoutID = append(withoutID, doc)
			continue
		}
		if deleted, _ := doc.Get(DeletedMarker); value.Truthy(deleted) {
			dataByID.Delete(id)
			continue
		}
		dataByID.Set(id, doc)
	}
	if err := lineStream.Err(); err != nil {
		return nil, err
	}
	if err := p.checkCorruption(corruptItems, dataLength); err != nil {
		return nil, err
	}

	docs := make([]*value.Document, 0, dataByID.Len()+len(withoutID))
	for doc := range dataByID.Values() {
		docs = append(docs, doc)
	}
	return append(docs, withoutID...), nil
}

func (p *Persistence) readArray(r io.Reader) ([]*value.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	v, err := value.Parse(data)
	if err != nil {
		return nil, err
	}
	arr, _ := v.(value.Array)
	docs := make([]*value.Document, 0, len(arr))
	corruptItems := 0
	for _, item := range arr {
		doc, ok := item.(*value.Document)
		if !ok {
			corruptItems++
			continue
		}
		docs = append(docs, doc)
	}
	if err := p.checkCorruption(corruptItems, len(arr)); err != nil {
		return nil, err
	}
	return docs, nil
}

func (p *Persistence) checkCorruption(corruptItems, dataLength int) error {
	if dataLength == 0 {
		return nil
	}
	corruptionRate := float64(corruptItems) / float64(dataLength)
	if corruptionRate > p.corruptAlertThreshold {
		return domain.ErrCorruptData{
			CorruptionRate: corruptionRate,
			CorruptItems:   corruptItems,
			DataLength:     dataLength,
			Threshold:      p.corruptAlertThreshold,
		}
	}
	if corruptItems > 0 {
		p.logger.Warn("skipped corrupt records", "corrupt", corruptItems, "total", dataLength)
	}
	return nil
}

// isArray reports whether the first non blank byte opens an array.
func isArray(br *bufio.Reader) bool {
	for n := 1; ; n++ {
		b, err := br.Peek(n)
		if len(b) < n || err != nil {
			return false
		}
		switch b[n-1] {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
}
