package proxypool

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cagr1tekin/MyVisa-Bot/internal/logger"
)

// Store persists the candidate pool and the blacklist as newline-delimited
// text files. Blacklist mutations are serialized by a single writer lock so
// the prober and request callers cannot interleave partial writes.
type Store struct {
	poolFile      string
	blacklistFile string
	mu            sync.Mutex
	logger        *logger.Logger
}

func NewStore(poolFile, blacklistFile string) *Store {
	return &Store{
		poolFile:      poolFile,
		blacklistFile: blacklistFile,
		logger:        logger.New("store"),
	}
}

// LoadPool reads the pool file, normalizes each non-comment line and returns
// the unique endpoints plus the number of rejected lines. A missing file is
// an empty pool, not an error.
func (s *Store) LoadPool() ([]Endpoint, int) {
	file, err := os.Open(s.poolFile)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WarnBg("Failed to open pool file %s: %v", s.poolFile, err)
		}
		return nil, 0
	}
	defer file.Close()

	var endpoints []Endpoint
	seen := make(map[string]bool)
	rejected := 0

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		ep, err := Normalize(line)
		if err != nil {
			rejected++
			s.logger.DebugBg("Skipping pool line %q: %v", line, err)
			continue
		}

		key := ep.URL()
		if seen[key] {
			continue
		}
		seen[key] = true
		endpoints = append(endpoints, ep)
	}

	if err := scanner.Err(); err != nil {
		s.logger.WarnBg("Error reading pool file %s: %v", s.poolFile, err)
	}

	return endpoints, rejected
}

// MergePool unions freshly scraped endpoints into the pool file, keeping
// existing entries. The rewrite is staged to a temp file and renamed so a
// crash never truncates the pool. Returns the number of new entries added
// and the resulting pool size.
func (s *Store) MergePool(raw []string) (added, total int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, _ := s.LoadPool()
	seen := make(map[string]bool, len(existing))
	lines := make([]string, 0, len(existing)+len(raw))
	for _, ep := range existing {
		seen[ep.URL()] = true
		lines = append(lines, ep.URL())
	}

	for _, entry := range raw {
		ep, normErr := Normalize(entry)
		if normErr != nil {
			s.logger.DebugBg("Skipping scraped entry %q: %v", entry, normErr)
			continue
		}
		if seen[ep.URL()] {
			continue
		}
		seen[ep.URL()] = true
		lines = append(lines, ep.URL())
		added++
	}

	if added == 0 {
		return 0, len(lines), nil
	}

	if err := os.MkdirAll(filepath.Dir(s.poolFile), 0755); err != nil {
		return 0, 0, fmt.Errorf("failed to create pool directory: %w", err)
	}

	tmp := s.poolFile + ".tmp"
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return 0, 0, fmt.Errorf("failed to stage pool file: %w", err)
	}
	if err := os.Rename(tmp, s.poolFile); err != nil {
		os.Remove(tmp)
		return 0, 0, fmt.Errorf("failed to replace pool file: %w", err)
	}

	s.logger.InfoBg("Pool updated: %d new endpoints, %d total", added, len(lines))
	return added, len(lines), nil
}

// LoadBlacklist returns the raw-identity set of blacklisted endpoints. Entries
// are matched as recorded strings, trailing reason annotations stripped.
func (s *Store) LoadBlacklist() map[string]struct{} {
	blacklist := make(map[string]struct{})

	file, err := os.Open(s.blacklistFile)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WarnBg("Failed to open blacklist file %s: %v", s.blacklistFile, err)
		}
		return blacklist
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry := strings.TrimSpace(strings.SplitN(line, "#", 2)[0])
		if entry != "" {
			blacklist[entry] = struct{}{}
		}
	}

	if err := scanner.Err(); err != nil {
		s.logger.WarnBg("Error reading blacklist file %s: %v", s.blacklistFile, err)
	}

	return blacklist
}

// AppendBlacklist records an endpoint in the blacklist file with its reason
// and a timestamp. Idempotent: returns false without writing if the endpoint
// is already recorded.
func (s *Store) AppendBlacklist(endpoint, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.loadBlacklistLocked()[endpoint]; exists {
		s.logger.DebugBg("Endpoint already blacklisted: %s", endpoint)
		return false
	}

	if err := os.MkdirAll(filepath.Dir(s.blacklistFile), 0755); err != nil {
		s.logger.ErrorBg("Failed to create blacklist directory: %v", err)
		return false
	}

	file, err := os.OpenFile(s.blacklistFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		s.logger.ErrorBg("Failed to open blacklist file for append: %v", err)
		return false
	}
	defer file.Close()

	line := fmt.Sprintf("%s  # %s - %s\n", endpoint, reason, time.Now().Format("2006-01-02 15:04:05"))
	if _, err := file.WriteString(line); err != nil {
		s.logger.ErrorBg("Failed to append to blacklist: %v", err)
		return false
	}

	s.logger.WarnBg("BLACKLISTED: %s (reason: %s)", endpoint, reason)
	return true
}

// RemoveBlacklist rewrites the blacklist file omitting lines that reference
// the endpoint. Returns true if any line was removed.
func (s *Store) RemoveBlacklist(endpoint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.blacklistFile)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WarnBg("Failed to read blacklist file: %v", err)
		}
		return false
	}

	var kept []string
	removed := false
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			entry := strings.TrimSpace(strings.SplitN(trimmed, "#", 2)[0])
			if entry == endpoint {
				removed = true
				continue
			}
		}
		kept = append(kept, line)
	}

	if !removed {
		return false
	}

	if err := os.WriteFile(s.blacklistFile, []byte(strings.Join(kept, "\n")), 0644); err != nil {
		s.logger.ErrorBg("Failed to rewrite blacklist file: %v", err)
		return false
	}

	s.logger.InfoBg("Removed from blacklist: %s", endpoint)
	return true
}

// loadBlacklistLocked is LoadBlacklist without taking the writer lock; the
// caller must hold s.mu.
func (s *Store) loadBlacklistLocked() map[string]struct{} {
	blacklist := make(map[string]struct{})

	data, err := os.ReadFile(s.blacklistFile)
	if err != nil {
		return blacklist
	}

	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		entry := strings.TrimSpace(strings.SplitN(trimmed, "#", 2)[0])
		if entry != "" {
			blacklist[entry] = struct{}{}
		}
	}

	return blacklist
}
