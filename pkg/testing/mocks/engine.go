// Recoverd
// Copyright (c) 2025 The Recoverd Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Recoverd.
//
// Recoverd is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Recoverd is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Recoverd.  If not, see <http://www.gnu.org/licenses/>.

package mocks

import (
	"errors"
	"fmt"
	"sync"

	"github.com/RecoverdProject/recoverd-core/pkg/engine"
)

// MockEngine is a scripted engine.Engine for testing the session manager
// without libphotorec. Behavior is configured up front; every context it
// creates shares the scripted disks and failure injections.
type MockEngine struct {
	// ChangeDiskErr, when set, makes every ChangeDisk call fail.
	ChangeDiskErr error
	// NewContextErr, when set, makes context creation fail.
	NewContextErr error

	// Disks returned by Disks and matched by ChangeDisk.
	MockDisks []engine.Disk
	// Partitions returned after a successful ChangeDisk.
	MockPartitions []engine.Partition
	// Archs returned by Archs.
	MockArchs []string
	// FileOptions returned by FileOptions.
	MockFileOptions []engine.FileOption

	// RunExitCode is what Run returns once released.
	RunExitCode int
	// RunBlocks makes Run wait until Abort or ReleaseRun.
	RunBlocks bool

	mu       sync.Mutex
	contexts []*MockContext
}

func NewMockEngine() *MockEngine {
	return &MockEngine{
		MockDisks: []engine.Disk{
			{Device: "/dev/sda", Description: "Mock Disk 8GB", Size: 8 << 30, SectorSize: 512},
		},
		MockPartitions: []engine.Partition{
			{Name: "partition1", Type: "Linux", FSType: "ext4", Order: 1, Size: 8 << 30, IsKnown: true},
		},
		MockArchs: []string{"none", "intel", "gpt", "mac", "sun"},
		MockFileOptions: []engine.FileOption{
			{Extension: "jpg", Description: "JPEG picture", Enabled: true},
			{Extension: "zip", Description: "zip archive", Enabled: true},
			{Extension: "txt", Description: "text file", Enabled: false},
		},
	}
}

func (m *MockEngine) Version() string {
	return "mock"
}

func (m *MockEngine) NewContext(params engine.InitParams) (engine.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.NewContextErr != nil {
		return nil, m.NewContextErr
	}

	ctx := &MockContext{
		eng:       m,
		initial:   params,
		outputDir: params.OutputDir,
		release:   make(chan struct{}),
	}
	m.contexts = append(m.contexts, ctx)
	return ctx, nil
}

// Contexts returns every context created so far, in creation order.
func (m *MockEngine) Contexts() []*MockContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockContext, len(m.contexts))
	copy(out, m.contexts)
	return out
}

// ReleaseAll unblocks every context currently stuck in Run.
func (m *MockEngine) ReleaseAll() {
	for _, ctx := range m.Contexts() {
		ctx.ReleaseRun()
	}
}

// MockContext is a single scripted engine context.
type MockContext struct {
	eng     *MockEngine
	initial engine.InitParams

	mu          sync.Mutex
	release     chan struct{}
	released    bool
	closed      bool
	aborted     bool
	running     bool
	runCalls    int
	currentDisk string
	outputDir   string
	options     engine.Options
	stats       engine.Statistics
}

func (c *MockContext) ChangeDisk(device string) (*engine.Disk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eng.ChangeDiskErr != nil {
		return nil, c.eng.ChangeDiskErr
	}
	for i := range c.eng.MockDisks {
		if c.eng.MockDisks[i].Device == device {
			c.currentDisk = device
			disk := c.eng.MockDisks[i]
			return &disk, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", device)
}

func (c *MockContext) ChangeArch(name string) (string, error) {
	if name == "" {
		return "none", nil
	}
	for _, arch := range c.eng.MockArchs {
		if arch == name {
			return arch, nil
		}
	}
	return "", fmt.Errorf("unknown partition table architecture: %s", name)
}

func (c *MockContext) ChangePart(order int, _, _ bool) (*engine.Partition, error) {
	for i := range c.eng.MockPartitions {
		if c.eng.MockPartitions[i].Order == order {
			part := c.eng.MockPartitions[i]
			return &part, nil
		}
	}
	return nil, fmt.Errorf("partition not found: order %d", order)
}

func (c *MockContext) ChangeOutputDir(dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputDir = dir
	return nil
}

func (c *MockContext) ChangeOptions(opts engine.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options = opts
	return nil
}

func (c *MockContext) ChangeFileOpts(_, _ []string) error {
	return nil
}

func (c *MockContext) ChangeAllFileOpts(_ bool) error {
	return nil
}

func (c *MockContext) FileOptions() ([]engine.FileOption, error) {
	return c.eng.MockFileOptions, nil
}

func (c *MockContext) Disks() ([]engine.Disk, error) {
	return c.eng.MockDisks, nil
}

func (c *MockContext) AddImage(path string) (*engine.Disk, error) {
	disk := engine.Disk{Device: path, Description: "Mock Image", Size: 1 << 30, SectorSize: 512}
	c.eng.mu.Lock()
	c.eng.MockDisks = append(c.eng.MockDisks, disk)
	c.eng.mu.Unlock()
	return &disk, nil
}

func (c *MockContext) Partitions() ([]engine.Partition, error) {
	return c.eng.MockPartitions, nil
}

func (c *MockContext) Archs() ([]string, error) {
	return c.eng.MockArchs, nil
}

func (c *MockContext) Run() (int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, errors.New("engine context closed")
	}
	c.runCalls++
	c.running = true
	blocks := c.eng.RunBlocks
	c.mu.Unlock()

	if blocks {
		<-c.release
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return c.eng.RunExitCode, nil
}

func (c *MockContext) Abort() {
	c.mu.Lock()
	c.aborted = true
	c.mu.Unlock()
	c.ReleaseRun()
}

// ReleaseRun unblocks a blocking Run without marking the carve aborted.
func (c *MockContext) ReleaseRun() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.released {
		c.released = true
		close(c.release)
	}
}

func (c *MockContext) Statistics() (*engine.Statistics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	if stats.Phase == "" {
		if c.running {
			stats.Phase = "STATUS_EXT2_OFF"
		} else {
			stats.Phase = "STATUS_QUIT"
		}
	}
	return &stats, nil
}

// SetStatistics scripts the counters returned by Statistics.
func (c *MockContext) SetStatistics(stats engine.Statistics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = stats
}

func (c *MockContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// InitParams reports what the context was created with.
func (c *MockContext) InitParams() engine.InitParams {
	return c.initial
}

// Aborted reports whether Abort was called on this context.
func (c *MockContext) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// RunCalls reports how many times Run was invoked.
func (c *MockContext) RunCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runCalls
}

// OutputDir reports the destination last set on the context.
func (c *MockContext) OutputDir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputDir
}

// Options reports the tunables last applied to the context.
func (c *MockContext) Options() engine.Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.options
}
