// Package rosbag writes ROS1 bag files (format v2.0) and reads them back
// for inspection.
package rosbag

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/banshee-data/waymo2bag/internal/monitoring"
	"github.com/banshee-data/waymo2bag/internal/rosmsg"
)

// DefaultChunkThreshold matches the rosbag recorder's default chunk size.
const DefaultChunkThreshold = 768 * 1024

// TempSuffix is appended to the output path while a bag is being written.
const TempSuffix = ".tmp"

// ErrClosed is returned by writes after Close or Abort.
var ErrClosed = errors.New("bag writer is closed")

// Options configures a Writer.
type Options struct {
	// ChunkThreshold is the uncompressed chunk size that triggers a flush.
	// Zero selects DefaultChunkThreshold.
	ChunkThreshold int
	// Latched lists topics whose connections are marked latching, like
	// /tf_static.
	Latched []string
}

type connection struct {
	id       uint32
	topic    string
	msgType  *rosmsg.MessageType
	latching bool
	count    int
}

type indexEntry struct {
	stamp  rosmsg.Time
	offset uint32
}

type chunkInfo struct {
	pos    uint64
	start  rosmsg.Time
	end    rosmsg.Time
	counts map[uint32]uint32
}

// Writer appends messages to a bag. Messages go into an in-memory chunk
// that is flushed with its index once it reaches the chunk threshold; the
// connection and chunk-info index is written by Close.
type Writer struct {
	path    string
	tmpPath string
	file    *os.File
	w       *bufio.Writer
	offset  uint64

	opts    Options
	latched map[string]bool

	conns     map[string]*connection
	connOrder []*connection

	chunk        bytes.Buffer
	chunkIndex   map[uint32][]indexEntry
	chunkStart   rosmsg.Time
	chunkEnd     rosmsg.Time
	chunkHasData bool
	chunks       []chunkInfo

	msgBuf bytes.Buffer
	closed bool
}

// Create starts a bag that will appear at path once Close succeeds. Until
// then data is written to path+TempSuffix.
func Create(path string, opts Options) (*Writer, error) {
	tmpPath := path + TempSuffix
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create bag: %w", err)
	}

	w, err := newWriter(f, opts)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, err
	}
	w.path = path
	w.tmpPath = tmpPath
	return w, nil
}

func newWriter(f *os.File, opts Options) (*Writer, error) {
	if opts.ChunkThreshold <= 0 {
		opts.ChunkThreshold = DefaultChunkThreshold
	}
	w := &Writer{
		file:       f,
		w:          bufio.NewWriterSize(f, 1<<20),
		opts:       opts,
		latched:    make(map[string]bool, len(opts.Latched)),
		conns:      make(map[string]*connection),
		chunkIndex: make(map[uint32][]indexEntry),
	}
	for _, t := range opts.Latched {
		w.latched[t] = true
	}

	if err := w.write([]byte(Magic)); err != nil {
		return nil, fmt.Errorf("failed to write bag magic: %w", err)
	}
	if err := w.write(bagHeaderRecord(0, 0, 0)); err != nil {
		return nil, fmt.Errorf("failed to write bag header: %w", err)
	}
	return w, nil
}

func (w *Writer) write(b []byte) error {
	n, err := w.w.Write(b)
	w.offset += uint64(n)
	return err
}

func (w *Writer) writeRecord(fields []field, data []byte) error {
	n, err := writeRecord(w.w, fields, data)
	w.offset += uint64(n)
	return err
}

// WriteMessage serializes msg and appends it to topic at stamp. The first
// message on a topic fixes the topic's type.
func (w *Writer) WriteMessage(topic string, stamp rosmsg.Time, msg rosmsg.Message) error {
	if w.closed {
		return ErrClosed
	}

	conn, ok := w.conns[topic]
	if !ok {
		conn = &connection{
			id:       uint32(len(w.connOrder)),
			topic:    topic,
			msgType:  msg.Type(),
			latching: w.latched[topic],
		}
		w.conns[topic] = conn
		w.connOrder = append(w.connOrder, conn)
		// Chunks carry their own connection records so each is readable
		// on its own.
		if _, err := writeRecord(&w.chunk, connectionHeader(conn), connectionData(conn)); err != nil {
			return err
		}
		monitoring.Tracef("bag %s: connection %d %s (%s)", w.path, conn.id, topic, conn.msgType.Name)
	} else if conn.msgType.Name != msg.Type().Name {
		return fmt.Errorf("topic %s has type %s, cannot write %s", topic, conn.msgType.Name, msg.Type().Name)
	}

	w.msgBuf.Reset()
	if err := msg.Serialize(&w.msgBuf); err != nil {
		return fmt.Errorf("serialize %s on %s: %w", msg.Type().Name, topic, err)
	}

	offset := uint32(w.chunk.Len())
	fields := []field{
		u8Field("op", opMessageData),
		u32Field("conn", conn.id),
		timeField("time", stamp),
	}
	if _, err := writeRecord(&w.chunk, fields, w.msgBuf.Bytes()); err != nil {
		return err
	}
	w.chunkIndex[conn.id] = append(w.chunkIndex[conn.id], indexEntry{stamp: stamp, offset: offset})
	conn.count++

	if !w.chunkHasData || stamp.Before(w.chunkStart) {
		w.chunkStart = stamp
	}
	if !w.chunkHasData || w.chunkEnd.Before(stamp) {
		w.chunkEnd = stamp
	}
	w.chunkHasData = true

	if w.chunk.Len() >= w.opts.ChunkThreshold {
		return w.flushChunk()
	}
	return nil
}

func connectionHeader(c *connection) []field {
	return []field{
		u8Field("op", opConnection),
		u32Field("conn", c.id),
		stringField("topic", c.topic),
	}
}

func connectionData(c *connection) []byte {
	fields := []field{
		stringField("topic", c.topic),
		stringField("type", c.msgType.Name),
		stringField("md5sum", c.msgType.MD5Sum),
		stringField("message_definition", c.msgType.Definition()),
	}
	if c.latching {
		fields = append(fields, stringField("latching", "1"))
	}
	return encodeFields(fields)
}

func (w *Writer) sortedChunkConns() []uint32 {
	ids := make([]uint32, 0, len(w.chunkIndex))
	for id := range w.chunkIndex {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// flushChunk writes the pending chunk followed by one index record per
// connection it contains.
func (w *Writer) flushChunk() error {
	if w.chunk.Len() == 0 {
		return nil
	}

	info := chunkInfo{
		pos:    w.offset,
		start:  w.chunkStart,
		end:    w.chunkEnd,
		counts: make(map[uint32]uint32, len(w.chunkIndex)),
	}
	err := w.writeRecord([]field{
		u8Field("op", opChunk),
		stringField("compression", "none"),
		u32Field("size", uint32(w.chunk.Len())),
	}, w.chunk.Bytes())
	if err != nil {
		return fmt.Errorf("failed to write chunk: %w", err)
	}

	for _, id := range w.sortedChunkConns() {
		entries := w.chunkIndex[id]
		data := make([]byte, 0, 12*len(entries))
		for _, e := range entries {
			data = append(data, timeField("", e.stamp).value...)
			data = append(data, u32Field("", e.offset).value...)
		}
		err := w.writeRecord([]field{
			u8Field("op", opIndexData),
			u32Field("ver", 1),
			u32Field("conn", id),
			u32Field("count", uint32(len(entries))),
		}, data)
		if err != nil {
			return fmt.Errorf("failed to write chunk index: %w", err)
		}
		info.counts[id] = uint32(len(entries))
	}

	monitoring.Tracef("bag %s: chunk %d at %d, %d bytes", w.path, len(w.chunks), info.pos, w.chunk.Len())
	w.chunks = append(w.chunks, info)
	w.chunk.Reset()
	w.chunkIndex = make(map[uint32][]indexEntry)
	w.chunkHasData = false
	return nil
}

// Close flushes the last chunk, writes the index section, rewrites the bag
// header and moves the file to its final path.
func (w *Writer) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true

	if err := w.finish(); err != nil {
		w.file.Close()
		os.Remove(w.tmpPath)
		return err
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("failed to close bag: %w", err)
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("failed to move bag into place: %w", err)
	}
	monitoring.Diagf("bag %s: %d connections, %d chunks, %d bytes", w.path, len(w.connOrder), len(w.chunks), w.offset)
	return nil
}

func (w *Writer) finish() error {
	if err := w.flushChunk(); err != nil {
		return err
	}

	indexPos := w.offset
	for _, c := range w.connOrder {
		if err := w.writeRecord(connectionHeader(c), connectionData(c)); err != nil {
			return fmt.Errorf("failed to write connection %s: %w", c.topic, err)
		}
	}
	for _, ci := range w.chunks {
		ids := make([]uint32, 0, len(ci.counts))
		for id := range ci.counts {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		data := make([]byte, 0, 8*len(ids))
		for _, id := range ids {
			data = append(data, u32Field("", id).value...)
			data = append(data, u32Field("", ci.counts[id]).value...)
		}
		err := w.writeRecord([]field{
			u8Field("op", opChunkInfo),
			u32Field("ver", 1),
			u64Field("chunk_pos", ci.pos),
			timeField("start_time", ci.start),
			timeField("end_time", ci.end),
			u32Field("count", uint32(len(ids))),
		}, data)
		if err != nil {
			return fmt.Errorf("failed to write chunk info: %w", err)
		}
	}

	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush bag: %w", err)
	}
	header := bagHeaderRecord(indexPos, uint32(len(w.connOrder)), uint32(len(w.chunks)))
	if _, err := w.file.WriteAt(header, int64(len(Magic))); err != nil {
		return fmt.Errorf("failed to rewrite bag header: %w", err)
	}
	return w.file.Sync()
}

// Abort discards the bag. Nothing is left at the final path.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.file.Close()
	if err := os.Remove(w.tmpPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove partial bag: %w", err)
	}
	return nil
}

// MessageCounts returns the number of messages written per topic.
func (w *Writer) MessageCounts() map[string]int {
	out := make(map[string]int, len(w.connOrder))
	for _, c := range w.connOrder {
		out[c.topic] = c.count
	}
	return out
}
