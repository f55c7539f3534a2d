package rosbag

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/edaniels/gobag/rosbag"
)

// Bag is a fully loaded bag used for inspection and verification.
type Bag struct {
	rb *rosbag.RosBag
}

// TopicSummary describes one connection in a bag.
type TopicSummary struct {
	Topic    string `json:"topic"`
	Type     string `json:"type"`
	MD5Sum   string `json:"md5sum"`
	Latching bool   `json:"latching,omitempty"`
	Messages int    `json:"messages"`
}

// ReadBag loads the bag at path.
func ReadBag(path string) (*Bag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open bag: %w", err)
	}
	defer f.Close()

	rb := rosbag.NewRosBag()
	if err := rb.Read(f); err != nil {
		return nil, fmt.Errorf("unable to read bag %s: %w", path, err)
	}
	return &Bag{rb: rb}, nil
}

// ChunkCount returns the number of chunks in the bag.
func (b *Bag) ChunkCount() int {
	return len(b.rb.Chunks)
}

// Summarize lists every connection with its message count, sorted by topic.
func (b *Bag) Summarize() []TopicSummary {
	counts := make(map[int32]int)
	for _, idx := range b.rb.Indexes {
		for _, d := range idx.Index {
			counts[d.ConnectionID] += int(d.MessageCount)
		}
	}

	out := make([]TopicSummary, 0, len(b.rb.Connections))
	for id, c := range b.rb.Connections {
		out = append(out, TopicSummary{
			Topic:    c.HeaderTopic,
			Type:     c.ConnectionType,
			MD5Sum:   c.MD5sum,
			Latching: c.Latching == "1",
			Messages: counts[id],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

// Topic returns the summary for topic, if present.
func (b *Bag) Topic(topic string) (TopicSummary, bool) {
	for _, s := range b.Summarize() {
		if s.Topic == topic {
			return s, true
		}
	}
	return TopicSummary{}, false
}

// jsonKey mirrors how the bag parser keys decoded topics.
func jsonKey(topic string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(topic, "/"), "/", "_"))
}

// MessagesForTopic decodes every message on topic into generic JSON maps.
// Each entry has a "meta" object with secs/nsecs and a "data" object with
// lower-cased field names.
func (b *Bag) MessagesForTopic(topic string) ([]map[string]interface{}, error) {
	key := jsonKey(topic)
	delete(b.rb.TopicsAsJSON, key)

	if err := b.rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { return t == topic },
		false,
	); err != nil {
		return nil, fmt.Errorf("error while parsing bag to JSON: %w", err)
	}

	msgs := b.rb.TopicsAsJSON[key]
	if msgs == nil {
		return nil, fmt.Errorf("no messages for topic %s", topic)
	}
	defer delete(b.rb.TopicsAsJSON, key)

	var all []map[string]interface{}
	for {
		line, err := msgs.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		message := map[string]interface{}{}
		if err := json.Unmarshal(line, &message); err != nil {
			return nil, fmt.Errorf("topic %s: %w", topic, err)
		}
		all = append(all, message)
	}
	return all, nil
}
