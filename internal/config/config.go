// Package config loads the service runtime settings from an env file and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/meetassist/backend/internal/layout"
)

const envPrefix = "MEETASSIST"

// EnvConfigFile names the variable that points at the env config file.
const EnvConfigFile = envPrefix + "_CONFIG_FILE"

const (
	defaultAddr                = ":8080"
	defaultPollIntervalSeconds = 30
	defaultFeedIntervalMinutes = 15
	defaultPlannerDays         = 7
	defaultHorizonDays         = 60
	maxHorizonDays             = 366
)

// Feed is one ICS calendar subscription.
type Feed struct {
	ID  string
	URL string
}

// Runtime is the resolved service configuration.
type Runtime struct {
	ConfigFile string

	Addr     string
	DataDir  string
	DBPath   string
	Location *time.Location

	PollInterval time.Duration
	FeedInterval time.Duration
	RemoteURL    string
	Feeds        []Feed

	PlannerDays int
	Horizon     time.Duration

	Metrics layout.Metrics
}

// Load resolves the runtime configuration. Values in the env file never
// override variables already set in the environment.
func Load() (Runtime, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Runtime{}, fmt.Errorf("resolve home dir: %w", err)
	}

	xdgConfig := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}

	xdgData := strings.TrimSpace(os.Getenv("XDG_DATA_HOME"))
	if xdgData == "" {
		xdgData = filepath.Join(home, ".local", "share")
	}

	configFile := strings.TrimSpace(os.Getenv(EnvConfigFile))
	if configFile == "" {
		configFile = filepath.Join(xdgConfig, "meetassist", "meetassist.env")
	}

	if err := godotenv.Load(configFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Runtime{}, fmt.Errorf("load env file %s: %w", configFile, err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	_ = v.BindEnv("addr", envPrefix+"_ADDR", "PORT")
	_ = v.BindEnv("data_dir", envPrefix+"_DATA_DIR")
	_ = v.BindEnv("timezone", envPrefix+"_TIMEZONE", "TZ")
	_ = v.BindEnv("poll_interval_seconds", envPrefix+"_POLL_INTERVAL_SECONDS")
	_ = v.BindEnv("feed_interval_minutes", envPrefix+"_FEED_INTERVAL_MINUTES")
	_ = v.BindEnv("remote_url", envPrefix+"_REMOTE_URL")
	_ = v.BindEnv("ics_feeds", envPrefix+"_ICS_FEEDS")
	_ = v.BindEnv("planner_days", envPrefix+"_PLANNER_DAYS")
	_ = v.BindEnv("horizon_days", envPrefix+"_HORIZON_DAYS")

	_ = v.BindEnv("header_height", envPrefix+"_HEADER_HEIGHT")
	_ = v.BindEnv("base_row_height", envPrefix+"_BASE_ROW_HEIGHT")
	_ = v.BindEnv("empty_row_height", envPrefix+"_EMPTY_ROW_HEIGHT")
	_ = v.BindEnv("base_event_height", envPrefix+"_BASE_EVENT_HEIGHT")
	_ = v.BindEnv("height_per_overlap", envPrefix+"_HEIGHT_PER_OVERLAP")
	_ = v.BindEnv("offset_per_event", envPrefix+"_OFFSET_PER_EVENT")

	defaults := layout.DefaultMetrics()
	v.SetDefault("header_height", defaults.HeaderHeight)
	v.SetDefault("base_row_height", defaults.BaseRowHeight)
	v.SetDefault("empty_row_height", defaults.EmptyRowHeight)
	v.SetDefault("base_event_height", defaults.BaseEventHeight)
	v.SetDefault("height_per_overlap", defaults.HeightPerOverlap)
	v.SetDefault("offset_per_event", defaults.OffsetPerEvent)
	v.SetDefault("addr", defaultAddr)
	v.SetDefault("data_dir", filepath.Join(xdgData, "meetassist"))
	v.SetDefault("timezone", "Local")
	v.SetDefault("poll_interval_seconds", defaultPollIntervalSeconds)
	v.SetDefault("feed_interval_minutes", defaultFeedIntervalMinutes)
	v.SetDefault("remote_url", "")
	v.SetDefault("ics_feeds", "")
	v.SetDefault("planner_days", defaultPlannerDays)
	v.SetDefault("horizon_days", defaultHorizonDays)

	addr := strings.TrimSpace(v.GetString("addr"))
	if addr == "" {
		addr = defaultAddr
	}
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	dataDir := strings.TrimSpace(v.GetString("data_dir"))
	if dataDir == "" {
		dataDir = filepath.Join(xdgData, "meetassist")
	}

	loc, err := loadLocation(v.GetString("timezone"))
	if err != nil {
		return Runtime{}, err
	}

	pollSeconds := v.GetInt("poll_interval_seconds")
	if pollSeconds <= 0 {
		pollSeconds = defaultPollIntervalSeconds
	}

	feedMinutes := v.GetInt("feed_interval_minutes")
	if feedMinutes <= 0 {
		feedMinutes = defaultFeedIntervalMinutes
	}

	plannerDays := v.GetInt("planner_days")
	if plannerDays <= 0 {
		plannerDays = defaultPlannerDays
	}

	horizonDays := v.GetInt("horizon_days")
	if horizonDays <= 0 {
		horizonDays = defaultHorizonDays
	}
	if horizonDays > maxHorizonDays {
		horizonDays = maxHorizonDays
	}

	metrics := layout.Metrics{
		HeaderHeight:     nonNegative(v.GetFloat64("header_height"), defaults.HeaderHeight),
		BaseRowHeight:    nonNegative(v.GetFloat64("base_row_height"), defaults.BaseRowHeight),
		EmptyRowHeight:   nonNegative(v.GetFloat64("empty_row_height"), defaults.EmptyRowHeight),
		BaseEventHeight:  nonNegative(v.GetFloat64("base_event_height"), defaults.BaseEventHeight),
		HeightPerOverlap: nonNegative(v.GetFloat64("height_per_overlap"), defaults.HeightPerOverlap),
		OffsetPerEvent:   nonNegative(v.GetFloat64("offset_per_event"), defaults.OffsetPerEvent),
	}
	if metrics.BaseRowHeight == 0 {
		metrics.BaseRowHeight = defaults.BaseRowHeight
	}

	feeds, err := ParseFeeds(v.GetString("ics_feeds"))
	if err != nil {
		return Runtime{}, err
	}

	return Runtime{
		ConfigFile:   configFile,
		Addr:         addr,
		DataDir:      dataDir,
		DBPath:       filepath.Join(dataDir, "meetassist.db"),
		Location:     loc,
		PollInterval: time.Duration(pollSeconds) * time.Second,
		FeedInterval: time.Duration(feedMinutes) * time.Minute,
		RemoteURL:    strings.TrimRight(strings.TrimSpace(v.GetString("remote_url")), "/"),
		Feeds:        feeds,
		PlannerDays:  plannerDays,
		Horizon:      time.Duration(horizonDays) * 24 * time.Hour,
		Metrics:      metrics,
	}, nil
}

// ParseFeeds parses "id=url,id=url". Entries without an id use "feedN".
func ParseFeeds(raw string) ([]Feed, error) {
	seen := make(map[string]bool)
	var feeds []Feed

	for i, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		id, url, ok := strings.Cut(item, "=")
		if !ok {
			id, url = fmt.Sprintf("feed%d", i+1), item
		}
		id = strings.TrimSpace(id)
		url = strings.TrimSpace(url)

		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") &&
			!strings.HasPrefix(url, "webcal://") {
			return nil, fmt.Errorf("ics feed %q: unsupported url %q", id, url)
		}
		if strings.HasPrefix(url, "webcal://") {
			url = "https://" + strings.TrimPrefix(url, "webcal://")
		}
		if seen[id] {
			return nil, fmt.Errorf("ics feed %q listed twice", id)
		}
		seen[id] = true

		feeds = append(feeds, Feed{ID: id, URL: url})
	}

	sort.SliceStable(feeds, func(i, j int) bool { return feeds[i].ID < feeds[j].ID })
	return feeds, nil
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

func nonNegative(value, fallback float64) float64 {
	if value < 0 {
		return fallback
	}
	return value
}
