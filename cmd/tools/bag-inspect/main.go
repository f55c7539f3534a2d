// Command bag-inspect lists the topics of a ROS bag and can dump the
// messages of one topic as JSON lines.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/banshee-data/waymo2bag/internal/rosbag"
)

func main() {
	topic := flag.String("topic", "", "dump the messages of this topic as JSON lines")
	limit := flag.Int("limit", 0, "maximum number of messages to dump (0 = all)")
	asJSON := flag.Bool("json", false, "print the topic summary as JSON")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bag-inspect [flags] <file.bag>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	bag, err := rosbag.ReadBag(path)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", path, err)
	}

	if *topic != "" {
		msgs, err := bag.MessagesForTopic(*topic)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", *topic, err)
		}
		enc := json.NewEncoder(os.Stdout)
		for i, m := range msgs {
			if *limit > 0 && i >= *limit {
				break
			}
			if err := enc.Encode(m); err != nil {
				log.Fatalf("Failed to encode message %d: %v", i, err)
			}
		}
		return
	}

	summary := bag.Summarize()
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			log.Fatalf("Failed to encode summary: %v", err)
		}
		return
	}

	fmt.Printf("%s: %d chunks\n", path, bag.ChunkCount())
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOPIC\tTYPE\tMESSAGES\tLATCHED")
	total := 0
	for _, s := range summary {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%v\n", s.Topic, s.Type, s.Messages, s.Latching)
		total += s.Messages
	}
	tw.Flush()
	fmt.Printf("%d topics, %d messages\n", len(summary), total)
}
