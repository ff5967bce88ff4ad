package lpcnor

import (
	"fmt"

	"github.com/calvinalkan/lpcnor/pkg/crc32c"
	"github.com/calvinalkan/lpcnor/pkg/flash"
)

// PageSize is the size of one data page: exactly one write line.
const PageSize = flash.WriteLine

// Mode selects Engine.Mount's recovery posture.
type Mode int

const (
	// Normal mounts only if every LEB resolves to exactly one valid PEB
	// and at most one spare results; otherwise Mount fails with
	// ErrFormat.
	Normal Mode = iota

	// Erase reformats every PEB (fresh headers, generation 0, averaged
	// erase count) if the scan finds corruption Normal would reject.
	Erase
)

// lebInfo is the in-RAM per-LEB bookkeeping, rebuilt on every Mount and
// never persisted.
type lebInfo struct {
	peb            int
	generation     uint8
	eraseCount     int
	lowestBusyPage int
	nbBusyPages    int
	nbSlots        int
}

type spareInfo struct {
	peb        int
	eraseCount int
}

// Engine is the state object holding the media engine's mounted state.
// One Engine owns one flash.Device; there is no package-level singleton.
// The zero value is not usable; construct with New.
type Engine struct {
	dev  flash.Device
	nLEB int

	writeVacantPlaceholders bool

	lebs  []lebInfo
	spare spareInfo
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithVacantPlaceholders makes a switch write an explicit blank slot at
// every untransferred slot index on the destination PEB instead of
// leaving the index implicitly blank. Both behaviours preserve slot
// indices across switches; this defaults to false.
func WithVacantPlaceholders(v bool) Option {
	return func(e *Engine) { e.writeVacantPlaceholders = v }
}

// New returns an Engine over dev. Call Mount before any other operation.
func New(dev flash.Device, opts ...Option) *Engine {
	e := &Engine{dev: dev, nLEB: dev.NPEB() - 1}
	for _, o := range opts {
		o(e)
	}
	return e
}

// pebPageCount is the number of PageSize pages in one PEB.
func (e *Engine) pebPageCount() int {
	return e.dev.PEBSize() / PageSize
}

// pagesNeeded returns the number of data pages an external record of the
// given byte length occupies; 0 for the inline case (size <= 8).
func pagesNeeded(size int) int {
	if size <= 8 {
		return 0
	}
	return (size + PageSize - 1) / PageSize
}

// Mount classifies every PEB, resolves duplicate LEB claims via
// generation comparison, rebuilds per-LEB bookkeeping, and - in Erase
// mode - reformats on corruption beyond self-repair.
func (e *Engine) Mount(mode Mode) error {
	nPEB := e.dev.NPEB()
	nLEB := e.nLEB

	type classified struct {
		blank bool
		valid bool
		hdr   Header
	}
	classes := make([]classified, nPEB)
	for i := 0; i < nPEB; i++ {
		if e.dev.IsBlank(i) {
			classes[i] = classified{blank: true}
			continue
		}
		hdr, ok := decodeHeader(e.dev.Address(i)[:HeaderSize])
		classes[i] = classified{valid: ok, hdr: hdr}
	}

	owner := make([]int, nLEB)
	for i := range owner {
		owner[i] = -1
	}
	spare := -1
	unrecoverable := false

	assignSpare := func(peb int) {
		if spare != -1 {
			unrecoverable = true
			return
		}
		spare = peb
	}

	for i := 0; i < nPEB; i++ {
		c := classes[i]
		switch {
		case c.blank:
			assignSpare(i)
		case !c.valid:
			// A single corrupt (non-blank, invalid) PEB is recoverable:
			// it simply becomes the new spare, provided at most one
			// spare results from the whole scan.
			assignSpare(i)
		default:
			leb := int(c.hdr.LEBNumber)
			if leb < 0 || leb >= nLEB {
				unrecoverable = true
				continue
			}
			if owner[leb] == -1 {
				owner[leb] = i
				continue
			}
			existing := classes[owner[leb]].hdr
			switch {
			case c.hdr.Generation == existing.Generation:
				// Identical generation should not arise from normal
				// operation; treat the later-scanned PEB as the loser.
				assignSpare(i)
			case c.hdr.IsMoreRecentThan(existing) && !existing.IsMoreRecentThan(c.hdr):
				loser := owner[leb]
				owner[leb] = i
				assignSpare(loser)
			case existing.IsMoreRecentThan(c.hdr) && !c.hdr.IsMoreRecentThan(existing):
				assignSpare(i)
			default:
				// Generations differ by exactly 2 (mod 4): a genuine
				// tie. Prefer the later-scanned PEB; either choice
				// keeps every LEB backed by exactly one valid PEB.
				loser := owner[leb]
				owner[leb] = i
				assignSpare(loser)
			}
		}
	}

	for leb := 0; leb < nLEB; leb++ {
		if owner[leb] == -1 {
			unrecoverable = true
		}
	}
	if spare == -1 {
		unrecoverable = true
	}

	if unrecoverable {
		if mode != Erase {
			return fmt.Errorf("lpcnor: mount: PEBs corrupted beyond self-repair: %w", ErrFormat)
		}
		return e.format()
	}

	lebs := make([]lebInfo, nLEB)
	for leb := 0; leb < nLEB; leb++ {
		lebs[leb] = e.scanLEB(owner[leb], classes[owner[leb]].hdr)
	}
	e.lebs = lebs

	spareEraseCount := 0
	if classes[spare].valid {
		spareEraseCount = int(classes[spare].hdr.EraseCount)
	}
	e.spare = spareInfo{peb: spare, eraseCount: spareEraseCount}
	return nil
}

// scanLEB rebuilds one LEB's lebInfo: scan the slot array to find
// nb_slots (respecting the transferred_slots fence), accumulate
// nb_busy_pages and lowest_busy_page over valid external slots, then walk
// downward from there to fold in any non-blank-but-uncommitted data pages
// left by a power loss mid-write.
func (e *Engine) scanLEB(peb int, hdr Header) lebInfo {
	data := e.dev.Address(peb)
	pebPageCount := e.dev.PEBSize() / PageSize

	nbSlots := 0
	lowestBusyPage := pebPageCount
	nbBusyPages := 0

	maxSlots := pebPageCount // a slot is never smaller than one page
	for idx := 0; idx < maxSlots; idx++ {
		off := HeaderSize + idx*SlotSize
		if off+SlotSize > len(data) {
			break
		}
		slot, state := decodeSlot(data[off : off+SlotSize])
		if state == slotBlank {
			if idx >= int(hdr.TransferredSlots) {
				break
			}
			// Below the transferred_slots fence a blank slot is a
			// legitimate vacant placeholder left by a switch; keep
			// scanning past it.
			nbSlots = idx + 1
			continue
		}
		nbSlots = idx + 1
		if state == slotValid && !slot.IsInline() {
			pages := pagesNeeded(int(slot.DataSize))
			nbBusyPages += pages
			if int(slot.Page) < lowestBusyPage {
				lowestBusyPage = int(slot.Page)
			}
		}
	}

	// Walk the whole free region down to the slot-array floor: a power
	// loss mid-write can leave a non-blank uncommitted page below blank
	// ones (data fills a reservation bottom-up), so stopping at the first
	// blank page would let a later reservation collide with it.
	floor := (HeaderSize + nbSlots*SlotSize + PageSize - 1) / PageSize
	for p := lowestBusyPage - 1; p >= floor; p-- {
		if !allFF(data[p*PageSize : (p+1)*PageSize]) {
			lowestBusyPage = p
		}
	}

	return lebInfo{
		peb:            peb,
		generation:     hdr.Generation,
		eraseCount:     int(hdr.EraseCount),
		lowestBusyPage: lowestBusyPage,
		nbBusyPages:    nbBusyPages,
		nbSlots:        nbSlots,
	}
}

// format reformats every PEB with a fresh header: LEBs 0..nLEB-1 land on
// PEBs 0..nLEB-1, the last PEB becomes the blank spare, and every header's
// erase_count is the average observed across any still-decodable headers.
func (e *Engine) format() error {
	nPEB := e.dev.NPEB()

	sum, count := 0, 0
	for i := 0; i < nPEB; i++ {
		if e.dev.IsBlank(i) {
			continue
		}
		if hdr, ok := decodeHeader(e.dev.Address(i)[:HeaderSize]); ok {
			sum += int(hdr.EraseCount)
			count++
		}
	}
	avg := 0
	if count > 0 {
		avg = sum / count
	}

	for i := 0; i < nPEB; i++ {
		if !e.dev.IsBlank(i) {
			if !e.dev.Erase(i) {
				return fmt.Errorf("lpcnor: format: erase peb %d: %w", i, ErrTransport)
			}
		}
	}

	lebs := make([]lebInfo, e.nLEB)
	pebPageCount := e.pebPageCount()
	for leb := 0; leb < e.nLEB; leb++ {
		peb := leb
		hdr := Header{LEBNumber: uint8(leb), Generation: 0, EraseCount: uint32(avg)}
		if !e.dev.Program(peb, 0, hdr.Encode()) {
			return fmt.Errorf("lpcnor: format: write header peb %d: %w", peb, ErrTransport)
		}
		lebs[leb] = lebInfo{peb: peb, generation: 0, eraseCount: avg, lowestBusyPage: pebPageCount}
	}
	e.lebs = lebs
	e.spare = spareInfo{peb: e.nLEB, eraseCount: avg}
	return nil
}

// selectLEB is a two-pass search for a LEB able to host
// pagesNeeded(size) data pages, preferring the lowest erase_count among
// qualifying LEBs, falling back to a LEB that qualifies only after a
// switch reclaims its garbage.
func (e *Engine) selectLEB(size int) (leb int, needSwitch bool, err error) {
	needed := pagesNeeded(size)
	pebPageCount := e.pebPageCount()

	best, bestErase := -1, 0
	for i, info := range e.lebs {
		free := info.lowestBusyPage - (info.nbSlots + 2)
		if needed < free {
			if best == -1 || info.eraseCount < bestErase {
				best, bestErase = i, info.eraseCount
			}
		}
	}
	if best != -1 {
		return best, false, nil
	}

	best, bestErase = -1, 0
	for i, info := range e.lebs {
		free := info.lowestBusyPage - (info.nbSlots + 2)
		reclaimable := pebPageCount - info.lowestBusyPage - info.nbBusyPages
		if needed < free+reclaimable {
			if best == -1 || info.eraseCount < bestErase {
				best, bestErase = i, info.eraseCount
			}
		}
	}
	if best != -1 {
		return best, true, nil
	}

	return -1, false, fmt.Errorf("lpcnor: no LEB can host %d bytes: %w", size, ErrCapacity)
}

// Create reserves space for a size-byte record, switching the chosen LEB
// first if selectLEB determined that is necessary to free enough pages.
func (e *Engine) Create(size int) (TempPtr, error) {
	if size < 0 {
		panic("lpcnor: negative size")
	}

	leb, needSwitch, err := e.selectLEB(size)
	if err != nil {
		return TempPtr{}, err
	}
	if needSwitch {
		if err := e.switchLEB(leb); err != nil {
			return TempPtr{}, err
		}
	}

	t := TempPtr{leb: leb, size: size, crc: crc32c.New()}
	if size > 8 {
		t.external = true
		info := &e.lebs[leb]
		info.lowestBusyPage -= pagesNeeded(size)
		t.page = info.lowestBusyPage
	}
	return t, nil
}

// Append buffers bytes into temp: inline records are
// held entirely in memory until Commit, external records are written to
// flash a write line at a time, with long aligned middle runs programmed
// directly from the caller's buffer.
func (e *Engine) Append(temp *TempPtr, data []byte) bool {
	if temp.pos+len(data) > temp.size {
		return false
	}

	if !temp.external {
		temp.inline = append(temp.inline, data...)
		temp.crc.Process(data)
		temp.pos += len(data)
		return true
	}

	peb := e.lebs[temp.leb].peb
	for len(data) > 0 {
		if temp.lineFill == 0 && len(data) >= flash.WriteLine {
			n := (len(data) / flash.WriteLine) * flash.WriteLine
			off := temp.page*PageSize + temp.pos
			if !e.dev.Program(peb, off, data[:n]) {
				return false
			}
			temp.crc.Process(data[:n])
			temp.pos += n
			data = data[n:]
			continue
		}

		n := flash.WriteLine - temp.lineFill
		if n > len(data) {
			n = len(data)
		}
		copy(temp.lineBuf[temp.lineFill:], data[:n])
		temp.crc.Process(data[:n])
		temp.lineFill += n
		temp.pos += n
		data = data[n:]

		if temp.lineFill == flash.WriteLine {
			off := temp.page*PageSize + temp.pos - flash.WriteLine
			if !e.dev.Program(peb, off, temp.lineBuf[:]) {
				return false
			}
			temp.lineFill = 0
		}
	}
	return true
}

// firstBlankSlot returns the lowest slot index that is blank, or
// info.nbSlots if the slot array has no blank slot yet (a new one must be
// allocated).
func (e *Engine) firstBlankSlot(info *lebInfo) int {
	data := e.dev.Address(info.peb)
	for idx := 0; idx < info.nbSlots; idx++ {
		off := HeaderSize + idx*SlotSize
		if _, state := decodeSlot(data[off : off+SlotSize]); state == slotBlank {
			return idx
		}
	}
	return info.nbSlots
}

// Commit flushes any trailing buffered bytes and writes the slot, which
// is the record's single atomic commit point.
func (e *Engine) Commit(temp *TempPtr) (Ptr, bool) {
	info := &e.lebs[temp.leb]
	peb := info.peb

	if temp.external && temp.lineFill > 0 {
		for i := temp.lineFill; i < flash.WriteLine; i++ {
			temp.lineBuf[i] = 0xFF
		}
		off := temp.page*PageSize + temp.pos - temp.lineFill
		if !e.dev.Program(peb, off, temp.lineBuf[:]) {
			return Ptr{}, false
		}
		temp.lineFill = 0
	}

	slotIdx := e.firstBlankSlot(info)
	isNewSlot := slotIdx == info.nbSlots

	var slot Slot
	if temp.external {
		slot = Slot{Page: uint16(temp.page), DataSize: uint16(temp.size)}
		slot.SetDataCRC(temp.crc.Result())
	} else {
		slot = Slot{Page: blankPage, DataSize: uint16(temp.size)}
		for i := range slot.Payload {
			slot.Payload[i] = 0xFF
		}
		copy(slot.Payload[:], temp.inline)
	}

	off := HeaderSize + slotIdx*SlotSize
	if !e.dev.Program(peb, off, slot.Encode()) {
		return Ptr{}, false
	}

	if isNewSlot {
		info.nbSlots++
	}
	if temp.external {
		info.nbBusyPages += pagesNeeded(temp.size)
	}

	return Ptr{LEB: uint8(temp.leb), Slot: uint16(slotIdx)}, true
}

// Write is the create+append+commit convenience.
func (e *Engine) Write(data []byte) Ptr {
	temp, err := e.Create(len(data))
	if err != nil {
		return BlankPtr()
	}
	if !e.Append(&temp, data) {
		return BlankPtr()
	}
	ptr, ok := e.Commit(&temp)
	if !ok {
		return BlankPtr()
	}
	return ptr
}

func (e *Engine) slotAt(ptr Ptr) (Slot, slotState, int) {
	info := e.lebs[ptr.LEB]
	off := HeaderSize + int(ptr.Slot)*SlotSize
	slot, state := decodeSlot(e.dev.Address(info.peb)[off : off+SlotSize])
	return slot, state, info.peb
}

// SizeOf returns ptr's record length in bytes. Undefined if ptr is blank
// or names a non-valid slot.
func (e *Engine) SizeOf(ptr Ptr) int {
	slot, _, _ := e.slotAt(ptr)
	return int(slot.DataSize)
}

// AddressOf returns a stable, flash-backed read slice for ptr's record.
// Undefined if ptr is blank or names a non-valid slot.
func (e *Engine) AddressOf(ptr Ptr) []byte {
	info := e.lebs[ptr.LEB]
	off := HeaderSize + int(ptr.Slot)*SlotSize
	slotRaw := e.dev.Address(info.peb)[off : off+SlotSize]
	slot, _ := decodeSlot(slotRaw)
	if slot.IsInline() {
		return slotRaw[4 : 4+int(slot.DataSize)]
	}
	dataOff := int(slot.Page) * PageSize
	return e.dev.Address(info.peb)[dataOff : dataOff+int(slot.DataSize)]
}

// Verify reports whether ptr names a valid slot and, for external
// records, whether a fresh CRC over the data pages matches the stored
// data_crc32.
func (e *Engine) Verify(ptr Ptr) bool {
	if ptr.IsBlank() {
		return false
	}
	slot, state, peb := e.slotAt(ptr)
	if state != slotValid {
		return false
	}
	if slot.IsInline() {
		return true
	}
	off := int(slot.Page) * PageSize
	data := e.dev.Address(peb)[off : off+int(slot.DataSize)]
	return crc32c.Of(data) == slot.DataCRC()
}

// Read returns a copy of ptr's record after verifying it: ErrFormat if
// ptr is blank or names a non-valid slot, ErrIntegrity if the stored
// data CRC disagrees with the pages.
func (e *Engine) Read(ptr Ptr) ([]byte, error) {
	if ptr.IsBlank() {
		return nil, fmt.Errorf("lpcnor: read of blank pointer: %w", ErrFormat)
	}
	slot, state, peb := e.slotAt(ptr)
	if state != slotValid {
		return nil, fmt.Errorf("lpcnor: read %v: %w", ptr, ErrFormat)
	}
	if !slot.IsInline() {
		off := int(slot.Page) * PageSize
		data := e.dev.Address(peb)[off : off+int(slot.DataSize)]
		if crc32c.Of(data) != slot.DataCRC() {
			return nil, fmt.Errorf("lpcnor: read %v: data crc mismatch: %w", ptr, ErrIntegrity)
		}
	}
	return append([]byte(nil), e.AddressOf(ptr)...), nil
}

// Delete marks ptr's slot deleted with a single program call that only
// clears bits (page and size both become 0), which is legal post-commit
// and can never produce a spuriously different valid record.
func (e *Engine) Delete(ptr Ptr) bool {
	if ptr.IsBlank() {
		return false
	}
	info := &e.lebs[ptr.LEB]
	off := HeaderSize + int(ptr.Slot)*SlotSize
	raw := e.dev.Address(info.peb)[off : off+SlotSize]

	slot, state := decodeSlot(raw)
	if state != slotValid {
		return false
	}

	deleted := make([]byte, SlotSize)
	copy(deleted, raw)
	deleted[0], deleted[1], deleted[2], deleted[3] = 0, 0, 0, 0

	if !e.dev.Program(info.peb, off, deleted) {
		return false
	}
	if !slot.IsInline() {
		info.nbBusyPages -= pagesNeeded(int(slot.DataSize))
	}
	return true
}

// IterateFirst returns the first valid-slot pointer in LEB order, or a
// blank pointer if the store is empty.
func (e *Engine) IterateFirst() Ptr {
	return e.iterateFrom(0, 0)
}

// IterateNext returns the next valid-slot pointer after ptr, or a blank
// pointer when exhausted.
func (e *Engine) IterateNext(ptr Ptr) Ptr {
	if ptr.IsBlank() {
		return BlankPtr()
	}
	return e.iterateFrom(int(ptr.LEB), int(ptr.Slot)+1)
}

func (e *Engine) iterateFrom(fromLEB, fromSlot int) Ptr {
	for leb := fromLEB; leb < len(e.lebs); leb++ {
		start := 0
		if leb == fromLEB {
			start = fromSlot
		}
		info := e.lebs[leb]
		data := e.dev.Address(info.peb)
		for slot := start; slot < info.nbSlots; slot++ {
			off := HeaderSize + slot*SlotSize
			if _, state := decodeSlot(data[off : off+SlotSize]); state == slotValid {
				return Ptr{LEB: uint8(leb), Slot: uint16(slot)}
			}
		}
	}
	return BlankPtr()
}

// LEBInfo is a read-only snapshot of one LEB's in-RAM bookkeeping, for
// diagnostics and tooling.
type LEBInfo struct {
	LEB            int
	PEB            int
	Generation     uint8
	EraseCount     int
	NbSlots        int
	NbBusyPages    int
	LowestBusyPage int
	FreePages      int
}

// Info returns a snapshot of every LEB's state plus the spare's PEB
// number. Only meaningful after a successful Mount.
func (e *Engine) Info() ([]LEBInfo, int) {
	out := make([]LEBInfo, len(e.lebs))
	for i, info := range e.lebs {
		free := info.lowestBusyPage - (info.nbSlots + 2)
		if free < 0 {
			free = 0
		}
		out[i] = LEBInfo{
			LEB:            i,
			PEB:            info.peb,
			Generation:     info.generation,
			EraseCount:     info.eraseCount,
			NbSlots:        info.nbSlots,
			NbBusyPages:    info.nbBusyPages,
			LowestBusyPage: info.lowestBusyPage,
			FreePages:      free,
		}
	}
	return out, e.spare.peb
}

// switchLEB copies leb's live slots onto the spare PEB (inline slots
// verbatim, external slots with their data pages relocated to the
// spare's high end), then commits the switch with a single CRC-protected
// header write. The old PEB becomes the new spare, not yet erased so its
// erase count survives for accounting.
func (e *Engine) switchLEB(leb int) error {
	info := &e.lebs[leb]
	pebPageCount := e.pebPageCount()

	if !e.dev.IsBlank(e.spare.peb) {
		if !e.dev.Erase(e.spare.peb) {
			return fmt.Errorf("lpcnor: switch leb %d: erase spare: %w", leb, ErrTransport)
		}
	}

	srcPEB, dstPEB := info.peb, e.spare.peb
	destPage := pebPageCount
	newNbBusyPages := 0

	for idx := 0; idx < info.nbSlots; idx++ {
		srcOff := HeaderSize + idx*SlotSize
		raw := e.dev.Address(srcPEB)[srcOff : srcOff+SlotSize]
		slot, state := decodeSlot(raw)

		dstSlotOff := HeaderSize + idx*SlotSize
		switch {
		case state != slotValid:
			if e.writeVacantPlaceholders {
				blank := make([]byte, SlotSize)
				for i := range blank {
					blank[i] = 0xFF
				}
				if !e.dev.Program(dstPEB, dstSlotOff, blank) {
					return fmt.Errorf("lpcnor: switch leb %d: placeholder slot %d: %w", leb, idx, ErrTransport)
				}
			}
			// else: leave implicitly blank on the freshly erased spare.

		case slot.IsInline():
			if !e.dev.Program(dstPEB, dstSlotOff, raw) {
				return fmt.Errorf("lpcnor: switch leb %d: inline slot %d: %w", leb, idx, ErrTransport)
			}

		default:
			pages := pagesNeeded(int(slot.DataSize))
			destPage -= pages
			srcDataOff := int(slot.Page) * PageSize
			dstDataOff := destPage * PageSize
			length := pages * PageSize
			data := e.dev.Address(srcPEB)[srcDataOff : srcDataOff+length]
			if !e.dev.Program(dstPEB, dstDataOff, data) {
				return fmt.Errorf("lpcnor: switch leb %d: data pages for slot %d: %w", leb, idx, ErrTransport)
			}

			newSlot := Slot{Page: uint16(destPage), DataSize: slot.DataSize}
			newSlot.SetDataCRC(slot.DataCRC())
			if !e.dev.Program(dstPEB, dstSlotOff, newSlot.Encode()) {
				return fmt.Errorf("lpcnor: switch leb %d: slot %d: %w", leb, idx, ErrTransport)
			}
			newNbBusyPages += pages
		}
	}

	newGen := (info.generation + 1) & 0x3
	newHeader := Header{
		LEBNumber:        uint8(leb),
		Generation:       newGen,
		EraseCount:       uint32(e.spare.eraseCount + 1),
		TransferredSlots: uint16(info.nbSlots),
	}
	if !e.dev.Program(dstPEB, 0, newHeader.Encode()) {
		return fmt.Errorf("lpcnor: switch leb %d: header: %w", leb, ErrTransport)
	}

	oldPEB, oldEraseCount := info.peb, info.eraseCount
	*info = lebInfo{
		peb:            dstPEB,
		generation:     newGen,
		eraseCount:     int(newHeader.EraseCount),
		lowestBusyPage: destPage,
		nbBusyPages:    newNbBusyPages,
		nbSlots:        info.nbSlots,
	}
	e.spare = spareInfo{peb: oldPEB, eraseCount: oldEraseCount}
	return nil
}
