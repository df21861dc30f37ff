package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"valentine/transport"
)

const (
	// Property observer IDs
	observePause = iota + 1
	observeDuration
	observeTimePos

	ipcRequestTimeout = 5 * time.Second
	ipcDialAttempts   = 20
	ipcDialBackoff    = 200 * time.Millisecond
	quitGrace         = 2 * time.Second
)

var errNotConnected = errors.New("mpv is not running")

// mpvOptions configures the mpv-backed audio resource
type mpvOptions struct {
	Binary        string
	SocketPath    string
	Volume        int
	AllowAutoplay bool
	Logger        *slog.Logger
}

// ipcMessage is any line mpv writes on its IPC socket: a reply to a
// request (request_id set) or an asynchronous event.
type ipcMessage struct {
	Event     string          `json:"event"`
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	RequestID *int64          `json:"request_id"`
	Reason    string          `json:"reason"`
	FileError string          `json:"file_error"`
}

type ipcRequest struct {
	Command   []interface{} `json:"command"`
	RequestID int64         `json:"request_id"`
}

// mpvResource implements transport.Resource on top of an mpv process driven
// over its JSON IPC socket. Playback properties are observed so Position and
// Duration never wait on the socket.
type mpvResource struct {
	opts mpvOptions
	log  *slog.Logger

	// connect starts mpv and returns a connection to its IPC socket
	connect func(ctx context.Context) (net.Conn, error)

	writeMu sync.Mutex

	mu        sync.Mutex
	cmd       *exec.Cmd
	conn      net.Conn
	nextID    int64
	pending   map[int64]chan ipcMessage
	subs      map[int]func(transport.Event)
	nextSub   int
	position  float64
	duration  float64
	paused    bool
	loaded    bool
	announced bool
	closed    bool

	done     chan struct{}
	doneOnce sync.Once
}

var _ transport.Resource = (*mpvResource)(nil)

// newMPVResource creates the resource. mpv itself is started lazily by the
// first Load so a missing binary surfaces as a load failure.
func newMPVResource(opts mpvOptions) *mpvResource {
	if opts.Binary == "" {
		opts.Binary = "mpv"
	}
	if opts.SocketPath == "" {
		opts.SocketPath = defaultSocketPath()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := &mpvResource{
		opts:     opts,
		log:      opts.Logger.With("component", "mpv"),
		pending:  make(map[int64]chan ipcMessage),
		subs:     make(map[int]func(transport.Event)),
		duration: math.NaN(),
		paused:   true,
		done:     make(chan struct{}),
	}
	r.connect = r.launch
	return r
}

// defaultSocketPath returns a per-process IPC socket in the temp dir
func defaultSocketPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("valentine-mpv-%d.sock", os.Getpid()))
}

// dialIPC connects to mpv. A launched mpv listens on a unix socket; a
// host:port address reaches an IPC socket someone bridged to TCP (socat).
// Windows named pipes are not supported.
func dialIPC(path string) (net.Conn, error) {
	if strings.Contains(path, ":") && !filepath.IsAbs(path) {
		return net.Dial("tcp", path)
	}
	return net.Dial("unix", path)
}

// launch starts mpv idle and paused, then waits for its IPC socket
func (r *mpvResource) launch(ctx context.Context) (net.Conn, error) {
	if _, err := os.Stat(r.opts.SocketPath); err == nil {
		os.Remove(r.opts.SocketPath)
	}

	args := []string{
		"--idle=yes",
		"--no-video",
		"--no-terminal",
		"--keep-open=yes",
		"--pause=yes",
		"--input-ipc-server=" + r.opts.SocketPath,
		fmt.Sprintf("--volume=%d", r.opts.Volume),
	}
	cmd := exec.Command(r.opts.Binary, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", r.opts.Binary, err)
	}
	r.log.Info("mpv started", "pid", cmd.Process.Pid, "socket", r.opts.SocketPath)

	r.mu.Lock()
	r.cmd = cmd
	r.mu.Unlock()

	var conn net.Conn
	var err error
	for i := 0; i < ipcDialAttempts; i++ {
		conn, err = dialIPC(r.opts.SocketPath)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(ipcDialBackoff):
		}
	}
	return nil, fmt.Errorf("failed to connect to mpv: %w", err)
}

func (r *mpvResource) ensureConnected(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errNotConnected
	}
	if r.conn != nil {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	conn, err := r.connect(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
	go r.readLoop(conn)

	observe := []struct {
		id   int
		name string
	}{
		{observePause, "pause"},
		{observeDuration, "duration"},
		{observeTimePos, "time-pos"},
	}
	for _, o := range observe {
		if err := r.request(ctx, "observe_property", o.id, o.name); err != nil {
			return fmt.Errorf("observe %s: %w", o.name, err)
		}
	}
	return nil
}

// Load starts mpv if needed and loads uri paused
func (r *mpvResource) Load(ctx context.Context, uri string) error {
	err := r.ensureConnected(ctx)
	if err == nil {
		err = r.request(ctx, "loadfile", uri, "replace")
	}
	if err != nil {
		err = fmt.Errorf("load %s: %w", uri, err)
		r.emit([]transport.Event{{Kind: transport.EventFailed, Err: err}})
		return err
	}
	r.log.Debug("loadfile sent", "uri", uri)
	return nil
}

// Play unpauses. Unsolicited playback is refused when autoplay is disabled,
// and any IPC failure is reported as a rejection too.
func (r *mpvResource) Play(ctx context.Context, origin transport.Origin) error {
	if origin == transport.OriginAutoplay && !r.opts.AllowAutoplay {
		return fmt.Errorf("autoplay disabled: %w", transport.ErrPlaybackStartRejected)
	}
	if err := r.request(ctx, "set_property", "pause", false); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrPlaybackStartRejected, err)
	}
	return nil
}

// Pause pauses playback
func (r *mpvResource) Pause(ctx context.Context) error {
	return r.request(ctx, "set_property", "pause", true)
}

// Position returns the last observed time-pos
func (r *mpvResource) Position() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position
}

// Duration returns the observed duration, NaN if unknown
func (r *mpvResource) Duration() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duration
}

// SetPosition seeks without waiting for mpv's reply
func (r *mpvResource) SetPosition(seconds float64) error {
	r.mu.Lock()
	if r.conn == nil || r.closed {
		r.mu.Unlock()
		return errNotConnected
	}
	r.nextID++
	id := r.nextID
	r.position = seconds
	r.mu.Unlock()

	return r.write(ipcRequest{
		Command:   []interface{}{"set_property", "time-pos", seconds},
		RequestID: id,
	})
}

// Subscribe registers fn for resource events
func (r *mpvResource) Subscribe(fn func(transport.Event)) func() {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// request sends a command and waits for its reply
func (r *mpvResource) request(ctx context.Context, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, ipcRequestTimeout)
	defer cancel()

	r.mu.Lock()
	if r.conn == nil || r.closed {
		r.mu.Unlock()
		return errNotConnected
	}
	r.nextID++
	id := r.nextID
	ch := make(chan ipcMessage, 1)
	r.pending[id] = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	if err := r.write(ipcRequest{Command: args, RequestID: id}); err != nil {
		return err
	}

	select {
	case resp := <-ch:
		if resp.Error != "" && resp.Error != "success" {
			return fmt.Errorf("mpv %v: %s", args[0], resp.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return errNotConnected
	}
}

func (r *mpvResource) write(req ipcRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode mpv command: %w", err)
	}

	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("failed to write to mpv: %w", err)
	}
	return nil
}

func (r *mpvResource) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			r.log.Debug("skipping malformed mpv line", "err", err)
			continue
		}
		r.dispatch(msg)
	}

	err := scanner.Err()
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	r.doneOnce.Do(func() { close(r.done) })
	if !closed {
		if err == nil {
			err = errors.New("connection closed")
		}
		r.log.Warn("mpv connection lost", "err", err)
		r.emit([]transport.Event{{Kind: transport.EventFailed, Err: fmt.Errorf("mpv: %w", err)}})
	}
}

func (r *mpvResource) dispatch(msg ipcMessage) {
	if msg.Event == "" && msg.RequestID != nil {
		r.mu.Lock()
		ch, ok := r.pending[*msg.RequestID]
		r.mu.Unlock()
		if ok {
			ch <- msg
		} else if msg.Error != "" && msg.Error != "success" {
			r.log.Debug("mpv command failed", "request_id", *msg.RequestID, "error", msg.Error)
		}
		return
	}

	r.mu.Lock()
	events := r.apply(msg)
	r.mu.Unlock()
	r.emit(events)
}

// apply folds an mpv event into the cached state and returns the resource
// events it produces. Callers hold r.mu.
func (r *mpvResource) apply(msg ipcMessage) []transport.Event {
	var events []transport.Event

	announce := func() {
		if r.loaded && !r.announced {
			r.announced = true
			events = append(events, transport.Event{Kind: transport.EventMetadataReady})
		}
	}

	switch msg.Event {
	case "start-file":
		r.loaded = false
		r.announced = false
		r.duration = math.NaN()
		r.position = 0

	case "file-loaded":
		r.loaded = true
		if !math.IsNaN(r.duration) {
			announce()
		}
		// pause changes before the load are not reported, so confirm a
		// play that was requested while loading
		if !r.paused {
			events = append(events, transport.Event{Kind: transport.EventPlayed})
		}

	case "playback-restart":
		// duration may never arrive for live sources
		announce()

	case "end-file":
		if msg.Reason == "error" {
			r.loaded = false
			reason := msg.FileError
			if reason == "" {
				reason = "unknown error"
			}
			events = append(events, transport.Event{
				Kind: transport.EventFailed,
				Err:  fmt.Errorf("mpv: %s", reason),
			})
		}

	case "property-change":
		switch msg.Name {
		case "pause":
			var paused bool
			if err := json.Unmarshal(msg.Data, &paused); err != nil {
				break
			}
			changed := paused != r.paused
			r.paused = paused
			if !r.loaded || !changed {
				break
			}
			if paused {
				events = append(events, transport.Event{Kind: transport.EventPaused})
			} else {
				events = append(events, transport.Event{Kind: transport.EventPlayed})
			}

		case "duration":
			r.duration = decodeSeconds(msg.Data)
			if !math.IsNaN(r.duration) {
				announce()
			}

		case "time-pos":
			if v := decodeSeconds(msg.Data); !math.IsNaN(v) {
				r.position = v
			}
		}
	}

	return events
}

// decodeSeconds reads a numeric property, NaN for null or unavailable
func decodeSeconds(data json.RawMessage) float64 {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil || v == nil {
		return math.NaN()
	}
	return *v
}

func (r *mpvResource) emit(events []transport.Event) {
	if len(events) == 0 {
		return
	}
	r.mu.Lock()
	subs := make([]func(transport.Event), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

// Close quits mpv and releases the socket
func (r *mpvResource) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conn := r.conn
	cmd := r.cmd
	r.mu.Unlock()

	if conn != nil {
		r.writeMu.Lock()
		conn.Write([]byte(`{"command": ["quit"]}` + "\n"))
		r.writeMu.Unlock()
		conn.Close()
	}
	r.doneOnce.Do(func() { close(r.done) })

	if cmd != nil && cmd.Process != nil {
		exited := make(chan error, 1)
		go func() { exited <- cmd.Wait() }()
		if conn == nil {
			// never connected, so nothing asked it to quit
			cmd.Process.Kill()
			<-exited
		} else {
			select {
			case <-exited:
			case <-time.After(quitGrace):
				cmd.Process.Kill()
				<-exited
			}
		}
		os.Remove(r.opts.SocketPath)
	}
	return nil
}
