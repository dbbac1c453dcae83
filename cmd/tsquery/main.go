package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"solar-monitor/internal/output"
	"solar-monitor/internal/tasks"
	"solar-monitor/pkg/solardb"
)

const usage = `usage: tsquery [flags] <command>

commands:
  topics            list topics
  meta              list topic metadata
  earliest          earliest data timestamp
  latest            latest data timestamp
  dates             distinct days holding data (full scan)
  range             data for -topics between -start and -end
`

func main() {
	var (
		cfgPath = flag.String("config", "", "collector YAML config to take the database section from")
		format  = flag.String("format", "json", "json or csv")
		topics  = flag.String("topics", "", "comma separated topic ids or names (range)")
		start   = flag.String("start", "", "range start, RFC 3339 or YYYY-MM-DD (range)")
		end     = flag.String("end", "", "range end, inclusive (range)")
		rate    = flag.Float64("sample_rate", 1, "fraction of rows to return (range)")
	)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	f, err := output.ParseFormat(*format)
	if err != nil {
		log.Fatal(err)
	}
	cfg, err := tasks.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	opts, err := cfg.Database.StoreOptions()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	db, err := solardb.Open(ctx, solardb.Options{
		Dialect:  opts.Dialect,
		User:     opts.User,
		Password: opts.Password,
		Host:     opts.Host,
		Port:     opts.Port,
		Database: opts.Database,
		SSLMode:  opts.SSLMode,
		PoolSize: opts.PoolSize,
	})
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer db.Close()

	q := query{db: db, format: f}
	switch cmd := flag.Arg(0); cmd {
	case "topics":
		err = q.topics(ctx)
	case "meta":
		err = q.meta(ctx)
	case "earliest", "latest":
		err = q.boundary(ctx, cmd)
	case "dates":
		err = q.dates(ctx)
	case "range":
		err = q.rangeQuery(ctx, *topics, *start, *end, *rate)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

type query struct {
	db     *solardb.Client
	format output.Format
}

func (q query) topics(ctx context.Context) error {
	ts, err := q.db.Topics(ctx)
	if err != nil {
		return err
	}
	return output.Topics(os.Stdout, q.format, ts)
}

func (q query) meta(ctx context.Context) error {
	m, err := q.db.Metadata(ctx)
	if err != nil {
		return err
	}
	return output.Metadata(os.Stdout, q.format, m)
}

func (q query) boundary(ctx context.Context, which string) error {
	get := q.db.Earliest
	if which == "latest" {
		get = q.db.Latest
	}
	ts, ok, err := get(ctx)
	if err != nil {
		return err
	}
	var times []time.Time
	if ok {
		times = append(times, ts)
	}
	return output.Times(os.Stdout, q.format, which, times, false)
}

func (q query) dates(ctx context.Context) error {
	ds, err := q.db.Dates(ctx)
	if err != nil {
		return err
	}
	return output.Times(os.Stdout, q.format, "dates", ds, true)
}

func (q query) rangeQuery(ctx context.Context, topicList, startStr, endStr string, rate float64) error {
	if topicList == "" || startStr == "" || endStr == "" {
		return fmt.Errorf("range needs -topics, -start and -end")
	}
	start, err := parseTime(startStr)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := parseTime(endStr)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	ids, err := q.topicIDs(ctx, strings.Split(topicList, ","))
	if err != nil {
		return err
	}
	data, err := q.db.Range(ctx, ids, start, end, rate)
	if err != nil {
		return err
	}
	all, err := q.db.Topics(ctx)
	if err != nil {
		return err
	}
	return output.Data(os.Stdout, q.format, output.Rows(data, all))
}

// topicIDs accepts numeric ids and topic names mixed.
func (q query) topicIDs(ctx context.Context, items []string) ([]int64, error) {
	ids := make([]int64, 0, len(items))
	var names []string
	for _, it := range items {
		it = strings.TrimSpace(it)
		if id, err := strconv.ParseInt(it, 10, 64); err == nil {
			ids = append(ids, id)
			continue
		}
		names = append(names, it)
	}
	if len(names) > 0 {
		named, err := q.db.TopicIDs(ctx, names...)
		if err != nil {
			return nil, err
		}
		ids = append(ids, named...)
	}
	return ids, nil
}

// parseTime reads RFC 3339 or a bare date; bare dates are UTC midnight.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}
