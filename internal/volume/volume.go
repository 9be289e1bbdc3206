// Package volume reports mounted filesystems and their capacity.
package volume

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
)

// Capacity is the usage of one mounted filesystem.
type Capacity struct {
	Path        string  `json:"path" yaml:"path"`
	Device      string  `json:"device" yaml:"device"`
	FSType      string  `json:"fstype" yaml:"fstype"`
	Total       uint64  `json:"total" yaml:"total"`
	Used        uint64  `json:"used" yaml:"used"`
	Free        uint64  `json:"free" yaml:"free"`
	UsedPercent float64 `json:"used_percent" yaml:"used_percent"`
}

// pseudoFS are filesystem types with no user data worth reporting.
var pseudoFS = map[string]bool{
	"autofs": true, "devfs": true, "devtmpfs": true, "tmpfs": true,
	"proc": true, "sysfs": true, "cgroup": true, "cgroup2": true,
	"overlay": true, "squashfs": true, "nullfs": true, "fdesc": true,
}

// Usage returns the capacity of the filesystem holding path.
func Usage(ctx context.Context, path string) (Capacity, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return Capacity{}, fmt.Errorf("disk usage %s: %w", path, err)
	}
	return Capacity{
		Path:        u.Path,
		FSType:      u.Fstype,
		Total:       u.Total,
		Used:        u.Used,
		Free:        u.Free,
		UsedPercent: u.UsedPercent,
	}, nil
}

// List returns every physical mounted filesystem with its capacity, one
// entry per device, sorted by mount point. Mounts whose usage cannot be
// read are left out.
func List(ctx context.Context) ([]Capacity, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}

	seen := make(map[string]bool)
	var out []Capacity
	for _, p := range parts {
		if pseudoFS[strings.ToLower(p.Fstype)] || seen[p.Device] {
			continue
		}
		c, err := Usage(ctx, p.Mountpoint)
		if err != nil || c.Total == 0 {
			continue
		}
		seen[p.Device] = true
		c.Device = p.Device
		if c.FSType == "" {
			c.FSType = p.Fstype
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
