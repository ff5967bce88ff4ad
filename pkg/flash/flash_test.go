package flash_test

import (
	"path/filepath"
	"testing"

	"github.com/calvinalkan/lpcnor/pkg/flash"
	"github.com/calvinalkan/lpcnor/pkg/fs"
	"github.com/stretchr/testify/require"
)

func Test_Memory_Program_Only_Clears_Bits(t *testing.T) {
	mem := flash.NewMemory(1, 64)

	line := make([]byte, flash.WriteLine)
	for i := range line {
		line[i] = 0xF0
	}
	require.True(t, mem.Program(0, 0, line))
	require.Equal(t, byte(0xF0), mem.Address(0)[0])

	// Clearing more bits in an already-programmed line is legal.
	for i := range line {
		line[i] = 0x80
	}
	require.True(t, mem.Program(0, 0, line))
	require.Equal(t, byte(0x80), mem.Address(0)[0])

	// Setting a cleared bit back to 1 is a programming error.
	for i := range line {
		line[i] = 0xFF
	}
	require.Panics(t, func() { mem.Program(0, 0, line) })
}

func Test_Memory_Erase_Restores_All_Bits_And_Counts(t *testing.T) {
	mem := flash.NewMemory(1, 64)

	line := make([]byte, flash.WriteLine)
	require.True(t, mem.Program(0, 0, line))
	require.False(t, mem.IsBlank(0))

	require.True(t, mem.Erase(0))
	require.True(t, mem.IsBlank(0))
	require.Equal(t, 1, mem.EraseCount(0))
}

func Test_Memory_Rejects_Unaligned_Program(t *testing.T) {
	mem := flash.NewMemory(1, 64)
	require.Panics(t, func() { mem.Program(0, 3, make([]byte, flash.WriteLine)) })
	require.Panics(t, func() { mem.Program(0, 0, make([]byte, 5)) })
}

func Test_PowerCut_Truncates_The_Armed_Program_Call(t *testing.T) {
	mem := flash.NewMemory(1, 64)
	cut := flash.NewPowerCut(mem)

	data := make([]byte, 2*flash.WriteLine)
	for i := range data {
		data[i] = 0x00
	}

	cut.Arm(1, flash.WriteLine+4)
	require.False(t, cut.Program(0, 0, data))

	// The first write line committed fully, the second only partially.
	require.Equal(t, byte(0x00), mem.Address(0)[flash.WriteLine-1])
	require.Equal(t, byte(0x00), mem.Address(0)[flash.WriteLine+3])
	require.Equal(t, byte(0xFF), mem.Address(0)[flash.WriteLine+4])

	// Subsequent calls behave normally again.
	require.True(t, cut.Program(0, 2*flash.WriteLine, data[:flash.WriteLine]))
}

func Test_Chaos_Injects_Program_And_Erase_Failures(t *testing.T) {
	mem := flash.NewMemory(1, 64)
	chaos := flash.NewChaos(mem)

	chaos.FailProgram = func(peb, offset int, data []byte) bool { return offset == 0 }
	require.False(t, chaos.Program(0, 0, make([]byte, flash.WriteLine)))
	require.True(t, mem.IsBlank(0), "failed program must not touch the block")
	require.True(t, chaos.Program(0, flash.WriteLine, make([]byte, flash.WriteLine)))

	chaos.FailErase = func(peb int) bool { return true }
	require.False(t, chaos.Erase(0))
	require.False(t, mem.IsBlank(0))
}

func Test_FileBacked_Image_Survives_Reopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.nor")

	dev, err := flash.OpenFileBacked(fs.NewReal(), path, 2, 64)
	require.NoError(t, err)

	line := make([]byte, flash.WriteLine)
	for i := range line {
		line[i] = 0xA5
	}
	require.True(t, dev.Program(1, 0, line))
	require.NoError(t, dev.Close())

	dev2, err := flash.OpenFileBacked(fs.NewReal(), path, 2, 64)
	require.NoError(t, err)
	defer dev2.Close()

	require.True(t, dev2.IsBlank(0))
	require.Equal(t, byte(0xA5), dev2.Address(1)[0])
}

func Test_FileBacked_Second_Open_Is_Locked_Out(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.nor")

	dev, err := flash.OpenFileBacked(fs.NewReal(), path, 2, 64)
	require.NoError(t, err)
	defer dev.Close()

	_, err = flash.OpenFileBacked(fs.NewReal(), path, 2, 64)
	require.Error(t, err)
}

func Test_FileBacked_Rejects_Wrong_Image_Size(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.nor")

	dev, err := flash.OpenFileBacked(fs.NewReal(), path, 2, 64)
	require.NoError(t, err)
	require.NoError(t, dev.Close())

	_, err = flash.OpenFileBacked(fs.NewReal(), path, 4, 64)
	require.Error(t, err)
}
