package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"resectionplan/internal/logging"
	"resectionplan/pkg/planning"
	"resectionplan/pkg/watcher"
)

var (
	watchOpts     planFlags
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Plan, then re-plan whenever a target mesh changes on disk",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := watchOpts.params()
		if err != nil {
			return err
		}
		return runWatch(cmd, params)
	},
}

func init() {
	addPlanFlags(watchCmd, &watchOpts)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "delay before reloading a changed file")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, params *planning.Params) error {
	out := cmd.OutOrStdout()
	params.Out = out

	planner := planning.NewPlanner(params)
	start := time.Now()
	if err := planner.Process(); err != nil {
		return fmt.Errorf("planning failed: %w", err)
	}
	printMetrics(cmd, planner, time.Since(start))

	files := planner.WatchedFiles()
	if len(files) == 0 {
		return fmt.Errorf("nothing to watch: targets must be loaded from files")
	}

	fw, err := watcher.NewFileWatcher(watchDebounce)
	if err != nil {
		return err
	}
	defer fw.Close()

	queue := newReloadQueue()
	if err := fw.Watch(files, queue.Add); err != nil {
		return err
	}
	fw.Start()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	fmt.Fprintf(out, "\nWatching %d target files, press Ctrl+C to stop\n", len(files))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-queue.Ready():
			for _, path := range queue.Drain() {
				start := time.Now()
				if err := planner.Reload(path); err != nil {
					logging.Logger().Error("reload failed", "path", path, "err", err)
					continue
				}
				printMetrics(cmd, planner, time.Since(start))
			}
		}
	}
}

// reloadQueue collects changed paths from the watcher goroutine. Each path is
// held at most once until drained, so a burst on one file never hides a
// change to another.
type reloadQueue struct {
	mu      sync.Mutex
	pending map[string]bool
	order   []string
	ready   chan struct{}
}

func newReloadQueue() *reloadQueue {
	return &reloadQueue{
		pending: make(map[string]bool),
		ready:   make(chan struct{}, 1),
	}
}

// Add queues path unless it is already waiting.
func (q *reloadQueue) Add(path string) {
	q.mu.Lock()
	if !q.pending[path] {
		q.pending[path] = true
		q.order = append(q.order, path)
	}
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Ready is signalled after Add.
func (q *reloadQueue) Ready() <-chan struct{} { return q.ready }

// Drain returns the queued paths in arrival order and empties the queue.
func (q *reloadQueue) Drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.order
	q.order = nil
	q.pending = make(map[string]bool)
	return out
}
