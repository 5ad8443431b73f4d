package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"ispboot/core"
	"ispboot/host/hid"
	"ispboot/host/isp"
)

// number is a uint32 flag or argument accepting decimal, 0x hex or 0b binary
type number uint32

func (n *number) Decode(ctx *kong.DecodeContext) error {
	var s string
	if err := ctx.Scan.PopValueInto("number", &s); err != nil {
		return err
	}
	v, err := parseNumber(s)
	if err != nil {
		return err
	}
	*n = number(v)
	return nil
}

func parseNumber(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return uint32(v), nil
}

type InfoCmd struct{}

func (cmd *InfoCmd) Run(c *Context) error {
	prog, info, err := c.connect()
	if err != nil {
		return err
	}
	defer prog.Close()

	mode, err := prog.FlashMode(c.ctx)
	if err != nil {
		return err
	}
	config, err := prog.ReadConfig(c.ctx)
	if err != nil {
		return err
	}

	c.out.ok("Connected")
	c.out.field("Product ID", "0x%08X", info.ProductID)
	if p, ok := core.FindProfileByProductID(info.ProductID); ok {
		c.out.field("Part", "%s", p.Name)
	}
	c.out.field("ISP version", "%s", info.VersionString())
	c.out.field("Running from", "%s", mode)
	c.out.field("APROM", "%d KB", info.APROMSize/1024)
	if info.DataFlashSize > 0 {
		c.out.field("Data Flash", "%d KB at 0x%08X", info.DataFlashSize/1024, info.DataFlashBase)
	} else {
		c.out.field("Data Flash", "disabled")
	}
	c.out.field("LDROM", "%d KB", info.LDROMSize/1024)
	c.out.field("Page / block", "%d / %d bytes", info.PageSize, info.BlockSize)
	for i, w := range config {
		c.out.field(fmt.Sprintf("CONFIG%d", i), "0x%08X", w)
	}
	return nil
}

type ReadCmd struct {
	Addr   number `arg:"" help:"Start address."`
	Length number `arg:"" help:"Number of bytes."`
	Output string `short:"o" type:"path" help:"Write the data to a file instead of dumping it."`
}

func (cmd *ReadCmd) Run(c *Context) error {
	prog, _, err := c.connect()
	if err != nil {
		return err
	}
	defer prog.Close()

	data, err := prog.Read(c.ctx, uint32(cmd.Addr), uint32(cmd.Length))
	if err != nil {
		return err
	}
	if cmd.Output != "" {
		if err := os.WriteFile(cmd.Output, data, 0o644); err != nil {
			return err
		}
		c.out.ok("Read %d bytes into %s", len(data), cmd.Output)
		return nil
	}
	c.out.status("%s", hex.Dump(data))
	return nil
}

type EraseCmd struct {
	Addr   number `arg:"" optional:"" help:"Start address (page aligned)."`
	Length number `arg:"" optional:"" help:"Number of bytes (page multiple)."`
	All    bool   `help:"Erase all of APROM and Data Flash."`
}

func (cmd *EraseCmd) Run(c *Context) error {
	if !cmd.All && cmd.Length == 0 {
		return fmt.Errorf("give an address and length, or --all")
	}

	prog, _, err := c.connect()
	if err != nil {
		return err
	}
	defer prog.Close()

	if cmd.All {
		if err := prog.EraseAll(c.ctx); err != nil {
			return err
		}
		c.out.ok("Erased APROM and Data Flash")
		return nil
	}
	if err := prog.Erase(c.ctx, uint32(cmd.Addr), uint32(cmd.Length)); err != nil {
		return err
	}
	c.out.ok("Erased 0x%08X+0x%X", uint32(cmd.Addr), uint32(cmd.Length))
	return nil
}

type ProgramCmd struct {
	File     string `arg:"" type:"existingfile" help:"Raw binary image."`
	Addr     number `default:"0" help:"Load address."`
	NoVerify bool   `name:"no-verify" help:"Skip the CRC check."`
	Chunk    int    `default:"48" help:"Bytes per PROGRAM frame."`
	Start    bool   `name:"run" help:"Start APROM when done."`
}

func (cmd *ProgramCmd) Run(c *Context) error {
	image, err := os.ReadFile(cmd.File)
	if err != nil {
		return err
	}

	prog, _, err := c.connect(
		isp.WithVerify(!cmd.NoVerify),
		isp.WithChunkSize(cmd.Chunk),
		isp.WithProgressCallback(c.out.progress),
	)
	if err != nil {
		return err
	}
	defer prog.Close()

	if err := prog.Program(c.ctx, uint32(cmd.Addr), image); err != nil {
		return err
	}
	c.out.ok("Programmed %d bytes at 0x%08X", len(image), uint32(cmd.Addr))

	if cmd.Start {
		return prog.Run(c.ctx, core.BootAPROM)
	}
	return nil
}

type ChecksumCmd struct {
	Addr   number `arg:"" help:"Start address."`
	Length number `arg:"" help:"Number of bytes."`
}

func (cmd *ChecksumCmd) Run(c *Context) error {
	prog, _, err := c.connect()
	if err != nil {
		return err
	}
	defer prog.Close()

	crc, err := prog.Checksum(c.ctx, uint32(cmd.Addr), uint32(cmd.Length))
	if err != nil {
		return err
	}
	c.out.status("0x%04X", crc)
	return nil
}

type ConfigCmd struct {
	Set []string `help:"New CONFIG words, CONFIG0 first." sep:","`
}

func (cmd *ConfigCmd) Run(c *Context) error {
	prog, _, err := c.connect()
	if err != nil {
		return err
	}
	defer prog.Close()

	if len(cmd.Set) > 0 {
		words := make([]uint32, len(cmd.Set))
		for i, s := range cmd.Set {
			if words[i], err = parseNumber(s); err != nil {
				return err
			}
		}
		if err := prog.UpdateConfig(c.ctx, words); err != nil {
			return err
		}
		c.out.ok("CONFIG updated")
	}

	words, err := prog.ReadConfig(c.ctx)
	if err != nil {
		return err
	}
	for i, w := range words {
		c.out.field(fmt.Sprintf("CONFIG%d", i), "0x%08X", w)
	}
	return nil
}

type RunCmd struct {
	Target string `arg:"" optional:"" enum:"aprom,ldrom" default:"aprom" help:"Image to start (aprom, ldrom)."`
}

func (cmd *RunCmd) Run(c *Context) error {
	prog, _, err := c.connect()
	if err != nil {
		return err
	}
	defer prog.Close()

	target := core.BootAPROM
	if cmd.Target == "ldrom" {
		target = core.BootLDROM
	}
	if err := prog.Run(c.ctx, target); err != nil {
		return err
	}
	c.out.ok("Started %s", target)
	return nil
}

type ResetCmd struct{}

func (cmd *ResetCmd) Run(c *Context) error {
	prog, _, err := c.connect()
	if err != nil {
		return err
	}
	defer prog.Close()

	if err := prog.Reset(c.ctx); err != nil {
		return err
	}
	c.out.ok("Reset")
	return nil
}

type ProfilesCmd struct{}

func (cmd *ProfilesCmd) Run(c *Context) error {
	for _, name := range core.BuiltinProfileNames() {
		p, _ := core.BuiltinProfile(name)
		c.out.field(name, "PID 0x%08X  %d KB APROM+DF  %d KB LDROM", p.ProductID, p.FlashSize/1024, p.LDROMSize/1024)
	}
	return nil
}

type DevicesCmd struct{}

func (cmd *DevicesCmd) Run(c *Context) error {
	devices := hid.AttachedDevices(uint16(CLI.VID), uint16(CLI.PID))
	if len(devices) == 0 {
		c.out.status("No devices found with VID:PID %04x:%04x", uint16(CLI.VID), uint16(CLI.PID))
		return nil
	}
	for i, info := range devices {
		c.out.field(fmt.Sprintf("hid:%d", i), "%s %s (serial %s, interface %d)",
			info.Manufacturer, info.Product, info.Serial, info.Interface)
	}
	return nil
}
