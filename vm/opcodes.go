package vm

import "fmt"

type Opcode uint8

// Opcode values match the JVM encoding so decoded records can be compared
// against javap output.
const (
	NOP         Opcode = 0x00 // | |
	ACONST_NULL Opcode = 0x01 // | | null
	BIPUSH      Opcode = 0x10 // | Index as byte | I
	SIPUSH      Opcode = 0x11 // | Index as short | I
	LDC         Opcode = 0x12 // | Const | C
	ILOAD       Opcode = 0x15 // | locals[Index] | I
	ALOAD       Opcode = 0x19 // | locals[Index] | R
	ISTORE      Opcode = 0x36 // I | locals[Index] = I |
	ASTORE      Opcode = 0x3a // R | locals[Index] = R |
	POP         Opcode = 0x57 // A | |
	DUP         Opcode = 0x59 // A | | A A
	SWAP        Opcode = 0x5f // A B | | B A
	IRETURN     Opcode = 0xac // I | returns I |
	ARETURN     Opcode = 0xb0 // R | returns R |
	RETURN      Opcode = 0xb1 // | returns void |
	GETSTATIC   Opcode = 0xb2 // | Class.Field | V
	PUTSTATIC   Opcode = 0xb3 // V | Class.Field = V |
	GETFIELD    Opcode = 0xb4 // R | R.Field | V
	PUTFIELD    Opcode = 0xb5 // R V | R.Field = V |
	NEW         Opcode = 0xbb // | allocate Class | R
	CHECKCAST   Opcode = 0xc0 // R | R assignable to Class, or fail | R
	INSTANCEOF  Opcode = 0xc1 // R | R assignable to Class | I
)

var opcodeNames = map[Opcode]string{
	NOP:         "nop",
	ACONST_NULL: "aconst_null",
	BIPUSH:      "bipush",
	SIPUSH:      "sipush",
	LDC:         "ldc",
	ILOAD:       "iload",
	ALOAD:       "aload",
	ISTORE:      "istore",
	ASTORE:      "astore",
	POP:         "pop",
	DUP:         "dup",
	SWAP:        "swap",
	IRETURN:     "ireturn",
	ARETURN:     "areturn",
	RETURN:      "return",
	GETSTATIC:   "getstatic",
	PUTSTATIC:   "putstatic",
	GETFIELD:    "getfield",
	PUTFIELD:    "putfield",
	NEW:         "new",
	CHECKCAST:   "checkcast",
	INSTANCEOF:  "instanceof",
}

func (o Opcode) String() string {
	if n, ok := opcodeNames[o]; ok {
		return n
	}
	return fmt.Sprintf("opcode(0x%02x)", uint8(o))
}

// Valid reports whether the interpreter knows how to execute o.
func (o Opcode) Valid() bool {
	_, ok := opcodeNames[o]
	return ok
}

// LookupOpcode maps a mnemonic back to its opcode.
func LookupOpcode(name string) (Opcode, bool) {
	for op, n := range opcodeNames {
		if n == name {
			return op, true
		}
	}
	return 0, false
}
