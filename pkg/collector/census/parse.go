package census

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/srodi/loadreaper/pkg/types"
)

// headerLines is how many leading lines ps prints before the first process.
const headerLines = 1

const minColumns = 5

// maxLineBytes bounds a single listing line.
const maxLineBytes = 1 << 20

// ParseListing turns `pid %CPU vsz ppid command` rows into ProcessInfo values.
// The header is discarded and lines that fail to parse are skipped. A read
// error, including a line longer than maxLineBytes, is returned with the rows
// parsed before it so the caller never mistakes a truncated listing for a
// complete one.
func ParseListing(r io.Reader) ([]types.ProcessInfo, error) {
	var procs []types.ProcessInfo
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		if line <= headerLines {
			continue
		}
		info, err := parseLine(scanner.Text())
		if err != nil {
			continue
		}
		procs = append(procs, info)
	}
	if err := scanner.Err(); err != nil {
		return procs, fmt.Errorf("reading listing after line %d: %w", line, err)
	}
	return procs, nil
}

func parseLine(line string) (types.ProcessInfo, error) {
	fields := strings.Fields(line)
	if len(fields) < minColumns {
		return types.ProcessInfo{}, fmt.Errorf("expected %d columns, got %d", minColumns, len(fields))
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return types.ProcessInfo{}, fmt.Errorf("pid: %w", err)
	}
	if pid <= 0 {
		return types.ProcessInfo{}, fmt.Errorf("invalid pid %d", pid)
	}
	cpu, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return types.ProcessInfo{}, fmt.Errorf("pcpu: %w", err)
	}
	vsz, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return types.ProcessInfo{}, fmt.Errorf("vsz: %w", err)
	}
	ppid, err := strconv.Atoi(fields[3])
	if err != nil {
		return types.ProcessInfo{}, fmt.Errorf("ppid: %w", err)
	}
	return types.ProcessInfo{
		PID:        pid,
		PPID:       ppid,
		CPUPercent: cpu,
		VSZKiB:     vsz,
		Comm:       strings.Join(fields[4:], " "),
	}, nil
}
