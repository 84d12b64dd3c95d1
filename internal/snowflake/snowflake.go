// Package snowflake generates 64-bit time-ordered identifiers:
// 42 bits of unix-millisecond timestamp, 10 bits of worker ID and
// 12 bits of per-millisecond increment.
package snowflake

import (
	"fmt"
	"sync"
	"time"
)

const (
	timestampLength int64 = 42
	timestampPos          = 64 - timestampLength // 22
	workerLength    int64 = 10
	workerPos             = timestampPos - workerLength // 12
	incrementLength       = 64 - (timestampLength + workerLength)
)

const (
	MaxWorkerID       = int64(1)<<workerLength - 1
	maxIncrementValue = int64(1)<<incrementLength - 1
)

type Generator struct {
	workerID int64

	mutex         sync.Mutex
	lastTimestamp int64
	lastIncrement int64
}

func NewGenerator(workerID int64) (*Generator, error) {
	if workerID < 0 || workerID > MaxWorkerID {
		return nil, fmt.Errorf("worker ID %d is outside of the 0..%d range", workerID, MaxWorkerID)
	}
	return &Generator{workerID: workerID}, nil
}

func (g *Generator) Generate() (int64, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	timestamp := time.Now().UnixMilli()
	if timestamp == g.lastTimestamp {
		g.lastIncrement += 1
		if g.lastIncrement > maxIncrementValue {
			return 0, fmt.Errorf("increment overflow after increment reached %d", g.lastIncrement)
		}
	} else {
		g.lastIncrement = 0
		g.lastTimestamp = timestamp
	}

	return timestamp<<timestampPos | g.workerID<<workerPos | g.lastIncrement, nil
}

type Parts struct {
	Timestamp int64
	WorkerID  int64
	Increment int64
}

func Extract(id int64) Parts {
	return Parts{
		Timestamp: id >> timestampPos,
		WorkerID:  (id >> workerPos) & MaxWorkerID,
		Increment: id & maxIncrementValue,
	}
}

// Time returns the creation time encoded in an ID.
func Time(id int64) time.Time {
	return time.UnixMilli(id >> timestampPos)
}
