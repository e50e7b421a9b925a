package analysis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vytor/chessync/internal/logger"
	"github.com/vytor/chessync/internal/models"
)

// searchTimeout bounds a single search. A healthy engine finishes a
// depth-16 search in well under a second.
const searchTimeout = 30 * time.Second

// mateToCP folds a mate distance (White's perspective) onto the
// centipawn scale so loss math never special-cases mate: mate in 1 is
// ±9990, mate in 2 ±9980, and so on.
func mateToCP(mate int) float64 {
	if mate >= 0 {
		return 10000 - float64(mate)*10
	}
	return -10000 - float64(mate)*10
}

// Engine wraps a UCI engine process as a single long-lived evaluator
// with an explicit lifecycle: Init starts the process lazily and is
// idempotent, Analyze runs one bounded search at a time, and Destroy
// releases the process and is safe to call at any point, including
// mid-search (the in-flight Analyze fails with a pipe error).
type Engine struct {
	path string
	log  *logger.Logger

	searchMu sync.Mutex // one search at a time
	stateMu  sync.Mutex // lifecycle state
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   *bufio.Reader
}

func NewEngine(path string) *Engine {
	if path == "" {
		path = "stockfish"
	}
	return &Engine{
		path: path,
		log:  logger.Default().WithPrefix("engine"),
	}
}

// Init starts the engine process and completes the UCI handshake.
// Calling Init while already initialized is a no-op.
func (e *Engine) Init(ctx context.Context) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if e.cmd != nil {
		return nil
	}

	e.log.Info("starting engine: %s", e.path)
	cmd := exec.Command(e.path)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		e.log.Error("failed to create stdin pipe: %v", err)
		return err
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		e.log.Error("failed to create stdout pipe: %v", err)
		return err
	}
	if err := cmd.Start(); err != nil {
		e.log.Error("failed to start engine: %v", err)
		return err
	}

	e.cmd = cmd
	e.stdin = stdin
	e.stdout = bufio.NewReader(stdoutPipe)

	e.log.Debug("initializing UCI protocol")
	if err := e.handshake(); err != nil {
		e.log.Error("UCI handshake failed: %v", err)
		e.teardownLocked()
		return err
	}

	e.log.Info("engine ready")
	return nil
}

func (e *Engine) handshake() error {
	if err := e.send("uci"); err != nil {
		return err
	}
	if err := e.waitFor("uciok", 5*time.Second); err != nil {
		return err
	}
	if err := e.send("isready"); err != nil {
		return err
	}
	return e.waitFor("readyok", 5*time.Second)
}

// Destroy stops the engine process and releases its resources. Safe to
// call at any time; a later Init starts a fresh process.
func (e *Engine) Destroy() error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if e.cmd == nil {
		return nil
	}
	e.log.Debug("destroying engine")
	return e.teardownLocked()
}

func (e *Engine) teardownLocked() error {
	_, _ = e.stdin.Write([]byte("quit\n"))
	_ = e.stdin.Close()
	// Kill unconditionally: quit is a courtesy, the kill guarantees a
	// mid-search process does not leak.
	_ = e.cmd.Process.Kill()
	err := e.cmd.Wait()
	e.cmd = nil
	e.stdin = nil
	e.stdout = nil

	if err != nil {
		e.log.Debug("engine process exited: %v", err)
	} else {
		e.log.Debug("engine process exited cleanly")
	}
	return nil
}

// Analyze evaluates one position to the given depth. The score is
// normalized to White's perspective regardless of the side to move.
func (e *Engine) Analyze(ctx context.Context, fen string, depth int) (models.Evaluation, error) {
	e.searchMu.Lock()
	defer e.searchMu.Unlock()

	e.stateMu.Lock()
	stdin, stdout := e.stdin, e.stdout
	e.stateMu.Unlock()
	if stdin == nil || stdout == nil {
		return models.Evaluation{}, errors.New("engine not initialized")
	}

	if depth <= 0 {
		depth = 16
	}
	log := e.log.WithField("depth", depth)
	start := time.Now()

	for _, cmd := range []string{"ucinewgame", "position fen " + fen, fmt.Sprintf("go depth %d", depth)} {
		if _, err := stdin.Write([]byte(cmd + "\n")); err != nil {
			log.Error("failed to send %q: %v", cmd, err)
			return models.Evaluation{}, err
		}
	}

	// The engine reports side-to-move scores; flip for black.
	parts := strings.Fields(fen)
	blackToMove := len(parts) > 1 && parts[1] == "b"

	// The read below blocks for as long as the engine stays silent, so
	// cancellation and the search budget are enforced by a watchdog that
	// kills the process. That fails the in-flight read with a pipe
	// error; a later Init starts a fresh process.
	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-done:
		case <-searchCtx.Done():
			select {
			case <-done:
				return
			default:
			}
			log.Warn("search aborted: %v", searchCtx.Err())
			_ = e.Destroy()
		}
	}()

	eval := models.Evaluation{Depth: depth, Source: models.EvalSourceLocal}
	for {
		line, err := stdout.ReadString('\n')
		if err != nil {
			if ctxErr := searchCtx.Err(); ctxErr != nil {
				return models.Evaluation{}, ctxErr
			}
			log.Error("failed to read from engine: %v", err)
			return models.Evaluation{}, err
		}
		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, "info") {
			if cp, mate, ok := parseScore(line); ok {
				if blackToMove {
					cp = -cp
					if mate != nil {
						m := -*mate
						mate = &m
					}
				}
				eval.CP = cp
				eval.Mate = mate
			}
		}
		if strings.HasPrefix(line, "bestmove") {
			if fields := strings.Fields(line); len(fields) >= 2 {
				eval.BestMove = fields[1]
			}
			log.Debug("search completed in %v: cp=%.0f, best=%s", time.Since(start), eval.CP, eval.BestMove)
			return eval, nil
		}
	}
}

// parseScore extracts the score from a UCI info line, in the side to
// move's perspective. Mate distances are also folded onto the cp scale.
func parseScore(line string) (cp float64, mate *int, ok bool) {
	parts := strings.Fields(line)
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] != "score" {
			continue
		}
		switch parts[i+1] {
		case "cp":
			if v, err := strconv.Atoi(parts[i+2]); err == nil {
				return float64(v), nil, true
			}
		case "mate":
			if v, err := strconv.Atoi(parts[i+2]); err == nil {
				return mateToCP(v), &v, true
			}
		}
	}
	return 0, nil, false
}

func (e *Engine) send(cmd string) error {
	_, err := e.stdin.Write([]byte(cmd + "\n"))
	return err
}

func (e *Engine) waitFor(marker string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for %s", marker)
		}
		line, err := e.stdout.ReadString('\n')
		if err != nil {
			return err
		}
		if strings.Contains(line, marker) {
			return nil
		}
	}
}
