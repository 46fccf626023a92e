package cood

import (
	"github.com/hollowgrove/gocood/pkg/rwlock"
)

// Notifier is the callback contract every read/write of a COD object
// consults. Implementations may block briefly but must not panic from
// OnAfterWrite: the contract treats that as a fatal logic error, mirroring
// the teacher's extension hooks in pkg/od/streamer.go generalized to the
// three-callback shape this core specifies.
type Notifier interface {
	// OnBeforeRead runs before a value is serialized. sizeQuery is true
	// when the caller only wants get_subidx_actual_size, not the data.
	OnBeforeRead(obj Object, subIndex uint8, complete bool, sizeQuery bool) SDO
	// OnBeforeWrite runs with the decoded shadow buffer before it is
	// committed to live storage. newSI0 is meaningful only for ARRAY
	// complete writes and ARRAY subindex-0 writes (the new element count);
	// it is 0 otherwise.
	OnBeforeWrite(obj Object, subIndex uint8, complete bool, newSI0 uint8, shadow []byte) SDO
	// OnAfterWrite runs once the shadow buffer has been committed. It
	// must not panic.
	OnAfterWrite(obj Object, subIndex uint8, complete bool)
}

// NopNotifier is a Notifier that always approves reads and writes and does
// nothing on completion. Embed it to implement only the callbacks a
// particular object cares about.
type NopNotifier struct{}

func (NopNotifier) OnBeforeRead(Object, uint8, bool, bool) SDO                { return SDOOK }
func (NopNotifier) OnBeforeWrite(Object, uint8, bool, uint8, []byte) SDO      { return SDOOK }
func (NopNotifier) OnAfterWrite(Object, uint8, bool)                         {}

// SubMeta describes one subindex of a structured object.
type SubMeta struct {
	DataType    DataType
	Attributes  Attribute
	MaxSizeBits uint32
	Name        string
	ASM         []byte
}

// Object is the common, read-only surface every COD object (VARIABLE,
// ARRAY, RECORD) exposes to ObjectInfoResponse and to PDO-style mapping
// code. It does not itself expose Read/Write: those are concrete methods
// on *Variable / *Array / *Record with differing subindex-0 semantics.
type Object interface {
	Index() uint16
	Name() string
	Code() ObjectCode
	DataType() DataType
	MaxSubIndices() int
	SubMeta(subIndex uint8) (SubMeta, error)
}

// base holds the fields shared by every concrete object kind: identity,
// the optional data-mutex protecting live storage, and the optional
// notifier. A nil mutex means the object declares its storage safe for
// concurrent readers, matching the "mutex optional" design note: locking
// is the object's choice, not the framework's.
type base struct {
	index    uint16
	name     string
	code     ObjectCode
	dataType DataType
	notifier Notifier
	mu       *rwlock.RWLock
}

func (b *base) Index() uint16      { return b.index }
func (b *base) Name() string       { return b.name }
func (b *base) Code() ObjectCode   { return b.code }
func (b *base) DataType() DataType { return b.dataType }

func (b *base) lockRead() {
	if b.mu != nil {
		b.mu.ReadLock()
	}
}

func (b *base) unlockRead() {
	if b.mu != nil {
		b.mu.ReleaseReadLock()
	}
}

func (b *base) lockWrite() {
	if b.mu != nil {
		b.mu.WriteLock()
	}
}

func (b *base) unlockWrite() {
	if b.mu != nil {
		b.mu.ReleaseWriteLock()
	}
}

func (b *base) notify() Notifier {
	if b.notifier != nil {
		return b.notifier
	}
	return NopNotifier{}
}

// canRead reports whether attr grants read access under the requested
// permission mask (property 9: non-zero intersection with the read bits).
func canRead(attr, requested Attribute) bool {
	return attr&requested&AttrReadAll != 0
}

// canWrite is the write-side counterpart of canRead.
func canWrite(attr, requested Attribute) bool {
	return attr&requested&AttrWriteAll != 0
}
