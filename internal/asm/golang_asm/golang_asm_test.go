package golang_asm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
)

func TestAssembler(t *testing.T) {
	a, err := NewAssembler("amd64")
	require.NoError(t, err)

	p := a.NewProg()
	p.As = x86.AADDL
	p.From = obj.Addr{Type: obj.TYPE_REG, Reg: x86.REG_CX}
	p.To = obj.Addr{Type: obj.TYPE_REG, Reg: x86.REG_AX}
	add := a.AddInstruction(p)

	p = a.NewProg()
	p.As = obj.ARET
	ret := a.AddInstruction(p)

	var generated []byte
	a.AddOnGenerateCallBack(func(code []byte) error {
		generated = code
		return nil
	})

	code, err := a.Assemble()
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0xc8, 0xc3}, code)
	require.Equal(t, code, generated)
	require.Equal(t, uint64(0), add.OffsetInBinary())
	require.Equal(t, uint64(2), ret.OffsetInBinary())
	require.Equal(t, [][]byte{{0x01, 0xc8}, {0xc3}}, a.InstructionBytes(code))
}

func TestAssembler_errors(t *testing.T) {
	_, err := NewAssembler("sparc")
	require.EqualError(t, err, `unsupported architecture "sparc"`)
	_, err = NewAssembler("")
	require.EqualError(t, err, `unsupported architecture ""`)

	a, err := NewAssembler("amd64")
	require.NoError(t, err)
	_, err = a.Assemble()
	require.EqualError(t, err, "no instruction to assemble")

	p := a.NewProg()
	p.As = obj.ARET
	a.AddInstruction(p)
	a.AddOnGenerateCallBack(func([]byte) error { return errors.New("some error") })
	_, err = a.Assemble()
	require.EqualError(t, err, "some error")
}
