package term

// ETF tag bytes (spec.md §3, §4.2).
const (
	tagVersion       = 131
	tagSmallInt      = 97
	tagInt           = 98
	tagFloat         = 70
	tagFloatLegacy   = 99
	tagAtomLatin1Ext = 100 // legacy Latin-1 atom, 2-byte length, decode only
	tagRefLegacy     = 101
	tagPortLegacy    = 102
	tagPidLegacy     = 103
	tagSmallTuple    = 104
	tagLargeTuple    = 105
	tagNil           = 106
	tagString        = 107
	tagList          = 108
	tagBinary        = 109
	tagSmallBig      = 110
	tagLargeBig      = 111
	tagMap           = 116
	tagNewRef        = 114
	tagAtomUTF8      = 118 // long atom, UTF-8 2-byte length, encoded for atoms over 255 bytes
	tagSmallAtomUTF8 = 119 // short atom, UTF-8 1-byte length, our default encode form
	tagNewPid        = 88
	tagNewPort       = 89
	tagNewerRef      = 90
)
