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

//go:build photorec

// Package photorec binds the engine boundary to libphotorec via cgo.
// Build with -tags=photorec and libphotorec installed.
package photorec

/*
#cgo LDFLAGS: -lphotorec -lext2fs -lntfs-3g -ljpeg -lz
#include <stdlib.h>
#include <string.h>
#include <photorec_api.h>

// cgo cannot invoke C function pointers directly.
static const char* partition_typename(const partition_t* part)
{
	if (part->arch == NULL || part->arch->get_partition_typename == NULL)
		return "";
	return part->arch->get_partition_typename(part);
}

static list_disk_t* append_disk(list_disk_t* list, disk_t* disk)
{
	list_disk_t* node = (list_disk_t*)malloc(sizeof(list_disk_t));
	node->disk = disk;
	node->prev = NULL;
	node->next = list;
	if (list != NULL)
		list->prev = node;
	return node;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/RecoverdProject/recoverd-core/pkg/engine"
	"github.com/RecoverdProject/recoverd-core/pkg/helpers/syncutil"
)

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func (*Engine) Version() string {
	return "photorec"
}

func (*Engine) NewContext(params engine.InitParams) (engine.Context, error) {
	args := params.Args
	if len(args) == 0 {
		args = []string{"photorec"}
	}

	argv := make([]*C.char, len(args))
	for i, arg := range args {
		argv[i] = C.CString(arg)
	}
	defer func() {
		for _, p := range argv {
			C.free(unsafe.Pointer(p))
		}
	}()

	recupDir := C.CString(params.OutputDir)
	defer C.free(unsafe.Pointer(recupDir))

	var device *C.char
	if params.Device != "" {
		device = C.CString(params.Device)
		defer C.free(unsafe.Pointer(device))
	}

	var logFile *C.char
	if params.LogFile != "" {
		logFile = C.CString(params.LogFile)
		defer C.free(unsafe.Pointer(logFile))
	}

	ctx := C.init_photorec(C.int(len(argv)), &argv[0], recupDir, device,
		C.int(params.LogMode), logFile)
	if ctx == nil {
		return nil, errors.New("failed to initialize recovery engine")
	}

	return &Context{ctx: ctx}, nil
}

// Context wraps a single ph_cli_context_t. The mutex serializes the
// configuration calls; Abort and Statistics intentionally bypass it so
// they work while Run holds the engine.
type Context struct {
	ctx    *C.ph_cli_context_t
	mu     syncutil.Mutex
	closed bool
}

func (c *Context) ChangeDisk(device string) (*engine.Disk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("engine context closed")
	}

	cDevice := C.CString(device)
	defer C.free(unsafe.Pointer(cDevice))

	disk := C.change_disk(c.ctx, cDevice)
	if disk == nil {
		return nil, fmt.Errorf("device not found: %s", device)
	}
	out := diskFromC(disk)
	return &out, nil
}

func (c *Context) ChangeArch(name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", errors.New("engine context closed")
	}

	var cName *C.char
	if name != "" {
		cName = C.CString(name)
		defer C.free(unsafe.Pointer(cName))
	}

	arch := C.change_arch(c.ctx, cName)
	if arch == nil {
		return "", fmt.Errorf("unknown partition table architecture: %s", name)
	}
	return C.GoString(arch.part_name_option), nil
}

func (c *Context) ChangePart(order int, modeExt2, carveFreeSpaceOnly bool) (*engine.Partition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("engine context closed")
	}

	part := C.change_part(c.ctx, C.int(order), cBool(modeExt2), cBool(carveFreeSpaceOnly))
	if part == nil {
		return nil, fmt.Errorf("partition not found: order %d", order)
	}
	out := partitionFromC(part)
	return &out, nil
}

func (c *Context) ChangeOutputDir(dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("engine context closed")
	}

	if c.ctx.params.recup_dir != nil {
		C.free(unsafe.Pointer(c.ctx.params.recup_dir))
	}
	c.ctx.params.recup_dir = C.CString(dir)
	return nil
}

func (c *Context) ChangeOptions(opts engine.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("engine context closed")
	}

	C.change_options(c.ctx, C.int(opts.Paranoid), cBool(opts.KeepCorruptedFile),
		cBool(opts.ModeExt2), cBool(opts.Expert), cBool(opts.LowMem), cBool(opts.Verbose))
	if opts.Blocksize > 0 {
		if C.change_blocksize(c.ctx, C.uint(opts.Blocksize)) != 0 {
			return fmt.Errorf("invalid blocksize: %d", opts.Blocksize)
		}
	}
	return nil
}

func (c *Context) ChangeFileOpts(enable, disable []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("engine context closed")
	}

	cEnable, freeEnable := cStringArray(enable)
	defer freeEnable()
	cDisable, freeDisable := cStringArray(disable)
	defer freeDisable()

	rc := C.change_fileopt(c.ctx, cEnable, C.int(len(enable)), cDisable, C.int(len(disable)))
	if rc != 0 {
		return errors.New("failed to apply file format selection")
	}
	return nil
}

func (c *Context) ChangeAllFileOpts(enable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("engine context closed")
	}

	if C.change_all_fileopt(c.ctx, cBool(enable)) != 0 {
		return errors.New("failed to toggle file formats")
	}
	return nil
}

func (c *Context) FileOptions() ([]engine.FileOption, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("engine context closed")
	}

	var opts []engine.FileOption
	fe := c.ctx.options.list_file_format
	for fe != nil && fe.file_hint != nil {
		opts = append(opts, engine.FileOption{
			Extension:   C.GoString(fe.file_hint.extension),
			Description: C.GoString(fe.file_hint.description),
			Enabled:     fe.enable != 0,
		})
		fe = (*C.file_enable_t)(unsafe.Pointer(
			uintptr(unsafe.Pointer(fe)) + unsafe.Sizeof(*fe)))
	}
	return opts, nil
}

func (c *Context) Disks() ([]engine.Disk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("engine context closed")
	}

	var disks []engine.Disk
	for node := c.ctx.list_disk; node != nil; node = node.next {
		if node.disk != nil {
			disks = append(disks, diskFromC(node.disk))
		}
	}
	return disks, nil
}

func (c *Context) AddImage(path string) (*engine.Disk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("engine context closed")
	}

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	disk := C.file_test_availability(cPath, C.int(0), C.TESTDISK_O_RDONLY)
	if disk == nil {
		return nil, fmt.Errorf("image not readable: %s", path)
	}
	c.ctx.list_disk = C.append_disk(c.ctx.list_disk, disk)
	out := diskFromC(disk)
	return &out, nil
}

func (c *Context) Partitions() ([]engine.Partition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("engine context closed")
	}

	var parts []engine.Partition
	for node := c.ctx.list_part; node != nil; node = node.next {
		if node.part != nil {
			parts = append(parts, partitionFromC(node.part))
		}
	}
	return parts, nil
}

func (c *Context) Archs() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("engine context closed")
	}

	var archs []string
	list := c.ctx.list_arch
	for list != nil && *list != nil {
		archs = append(archs, C.GoString((*list).part_name_option))
		list = (**C.arch_fnct_t)(unsafe.Pointer(
			uintptr(unsafe.Pointer(list)) + unsafe.Sizeof(*list)))
	}
	return archs, nil
}

// Run blocks inside the carve loop. No Go lock is held while running so
// Abort and Statistics stay reachable from other goroutines.
func (c *Context) Run() (int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, errors.New("engine context closed")
	}
	ctx := c.ctx
	c.mu.Unlock()

	rc := C.run_photorec(ctx)
	return int(rc), nil
}

func (c *Context) Abort() {
	C.abort_photorec(c.ctx)
}

func (c *Context) Statistics() (*engine.Statistics, error) {
	params := &c.ctx.params

	stats := &engine.Statistics{
		Phase:          C.GoString(C.status_to_name(params.status)),
		Pass:           uint(params.pass),
		FilesRecovered: uint(params.file_nbr),
		Offset:         uint64(params.offset),
		DirNum:         uint(params.dir_num),
	}

	fs := params.file_stats
	for fs != nil && fs.file_hint != nil {
		stats.ByType = append(stats.ByType, engine.FileTypeStat{
			Extension:    C.GoString(fs.file_hint.extension),
			Recovered:    uint(fs.recovered),
			NotRecovered: uint(fs.not_recovered),
		})
		fs = (*C.file_stat_t)(unsafe.Pointer(
			uintptr(unsafe.Pointer(fs)) + unsafe.Sizeof(*fs)))
	}
	return stats, nil
}

func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	C.finish_photorec(c.ctx)
	c.ctx = nil
	return nil
}

func diskFromC(disk *C.disk_t) engine.Disk {
	return engine.Disk{
		Device:      C.GoString(disk.device),
		Description: C.GoString(&disk.description_txt[0]),
		Model:       C.GoString(disk.model),
		Serial:      C.GoString(disk.serial_no),
		Size:        uint64(disk.disk_size),
		SectorSize:  uint(disk.sector_size),
	}
}

func partitionFromC(part *C.partition_t) engine.Partition {
	p := engine.Partition{
		Name:    C.GoString(&part.partname[0]),
		FSType:  C.GoString(&part.fsname[0]),
		Order:   int(part.order),
		Offset:  uint64(part.part_offset),
		Size:    uint64(part.part_size),
		IsKnown: part.upart_type != C.UP_UNK,
	}
	p.Type = C.GoString(C.partition_typename(part))
	p.Bootable = part.status == C.STATUS_PRIM_BOOT
	return p
}

func cBool(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

func cStringArray(items []string) (**C.char, func()) {
	if len(items) == 0 {
		return nil, func() {}
	}
	arr := make([]*C.char, len(items))
	for i, s := range items {
		arr[i] = C.CString(s)
	}
	return &arr[0], func() {
		for _, p := range arr {
			C.free(unsafe.Pointer(p))
		}
	}
}
