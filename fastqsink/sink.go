// Package fastqsink implements the write router (spec §4.F) and the
// default per-destination FASTQ sink it dispatches demux.WriteRecords
// into, adapted from the teacher's encoding/fastq.Writer.
package fastqsink

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"

	"github.com/seqtools/cbcldemux/demux"
	"github.com/seqtools/cbcldemux/encoding/fastq"
	"github.com/seqtools/cbcldemux/samplesheet"
)

// Sink accepts WriteRecords for a single destination, in arrival order.
// Implementations are single-writer: the router never calls Write on a
// given Sink from more than one goroutine at a time.
type Sink interface {
	Write(rec demux.WriteRecord) error
	Close() error
}

// SinkFactory opens a new Sink the first time a destination is seen.
type SinkFactory interface {
	Open(ctx context.Context, destination string) (Sink, error)
}

// DirFactory opens one gzip-compressed FASTQ file per destination under
// Dir, named "<destination>.fastq.gz". cmd/cbcl-demux passes it to the
// pipeline orchestrator as its SinkFactory; the orchestrator itself has no
// default and uses whatever SinkFactory it is given. Format is not
// consulted: every destination is written as gzip.
type DirFactory struct {
	Dir    string
	Format samplesheet.CompressionFormat
}

// Open implements SinkFactory.
func (f *DirFactory) Open(ctx context.Context, destination string) (Sink, error) {
	path := filepath.Join(f.Dir, destination+".fastq.gz")
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "create fastq sink", path)
	}
	gz, err := gzip.NewWriterLevel(out.Writer(ctx), gzip.DefaultCompression)
	if err != nil {
		_ = out.Close(ctx)
		return nil, errors.E(err, "gzip writer", path)
	}
	return &fileSink{
		ctx:  ctx,
		path: path,
		out:  out,
		gz:   gz,
		w:    fastq.NewWriter(gz),
	}, nil
}

// fileSink is a single gzip-compressed FASTQ file backing one destination.
// Illumina's "dragen" and "dragen-interleaved" formats differ from plain
// "gzip" only in read-pair interleaving, which demux.interleaveLabel
// achieves upstream of this sink by routing R1 and R2 to the same
// destination name in cluster order; every format shares this same
// on-disk gzip+FASTQ encoding, matching the teacher's single
// encoding/fastq.Writer used across its tools regardless of downstream
// consumer.
type fileSink struct {
	ctx  context.Context
	path string
	out  file.File
	gz   *gzip.Writer
	w    *fastq.Writer
}

// Write implements Sink. Quality bytes are raw Phred scores (§3); FASTQ
// requires the Phred+33 ASCII encoding.
func (s *fileSink) Write(rec demux.WriteRecord) error {
	return s.w.Write(&fastq.Read{
		ID:   "@" + rec.ID,
		Seq:  string(rec.Reads),
		Unk:  "+",
		Qual: encodePhred33(rec.Quals),
	})
}

func encodePhred33(quals []byte) string {
	b := make([]byte, len(quals))
	for i, q := range quals {
		b[i] = q + 33
	}
	return string(b)
}

// Close implements Sink, flushing the gzip stream before closing the
// underlying file.
func (s *fileSink) Close() error {
	var e errors.Once
	e.Set(s.gz.Close())
	e.Set(s.out.Close(s.ctx))
	if err := e.Err(); err != nil {
		return fmt.Errorf("fastqsink: close %s: %w", s.path, err)
	}
	return nil
}
