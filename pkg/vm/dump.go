package vm

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

const dumpColumns = 10

// Dump prints the register file and the full memory to w.
func (vm *VM) Dump(w io.Writer) error {
	return DumpState(w, vm.SaveState())
}

// DumpState prints a captured machine state to w.
func DumpState(w io.Writer, s MachineState) error {
	if _, err := fmt.Fprintln(w, "REGISTERS:"); err != nil {
		return err
	}
	regs := tablewriter.NewWriter(w)
	regs.SetBorder(false)
	regs.SetColumnSeparator("")
	regs.SetAlignment(tablewriter.ALIGN_LEFT)
	regs.AppendBulk([][]string{
		{"accumulator", s.Registers.Accumulator.String()},
		{"instruction_counter", fmt.Sprintf("%04d", s.Registers.InstructionCounter)},
		{"instruction_register", s.Registers.InstructionRegister.String()},
		{"operation_code", fmt.Sprintf("%02x", uint16(s.Registers.OperationCode))},
		{"operand", fmt.Sprintf("%04d", s.Registers.Operand)},
		{"state", s.State.String()},
	})
	regs.Render()

	if _, err := fmt.Fprintln(w, "\nMEMORY:"); err != nil {
		return err
	}
	mem := tablewriter.NewWriter(w)
	header := make([]string, dumpColumns+1)
	for i := 0; i < dumpColumns; i++ {
		header[i+1] = strconv.Itoa(i)
	}
	mem.SetHeader(header)
	mem.SetAutoFormatHeaders(false)
	mem.SetAlignment(tablewriter.ALIGN_RIGHT)

	for base := 0; base < len(s.Memory); base += dumpColumns {
		row := make([]string, dumpColumns+1)
		row[0] = fmt.Sprintf("%04d", base)
		for j := 0; j < dumpColumns; j++ {
			if base+j < len(s.Memory) {
				row[j+1] = s.Memory[base+j].String()
			}
		}
		mem.Append(row)
	}
	mem.Render()
	_, err := fmt.Fprintln(w)
	return err
}
