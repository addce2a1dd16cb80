package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"templatefiller/internal/fill"
	"templatefiller/internal/records"
	"templatefiller/internal/schema"
	"templatefiller/internal/storage"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSchema loads the template schema against the built-in fill registry.
func CheckSchema(path string) Result {
	const name = "Template schema"
	tmpl, err := schema.Load(path, fill.Builtins())
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d rules)", path, tmpl.Len())}
}

// CheckRecords opens the records database and pings it.
func CheckRecords(ctx context.Context, path string) Result {
	const name = "Records database"
	store, err := records.OpenPath(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckStore writes and removes a probe object. Stores are create-exclusive,
// so the probe key is unique per call.
func CheckStore(ctx context.Context, name string, store storage.Store) Result {
	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	key := "preflight-" + uuid.NewString()
	if err := store.Put(checkCtx, key, []byte("ok")); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s write failed (%s)", store.Backend(), summarizeError(err))}
	}
	if err := store.Delete(checkCtx, key); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s cleanup failed (%s)", store.Backend(), summarizeError(err))}
	}
	return Result{Name: name, Passed: true, Detail: store.Backend() + " (write ok)"}
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out (unreachable)"
	}
	return err.Error()
}
