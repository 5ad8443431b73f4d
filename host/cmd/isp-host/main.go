// Command isp-host talks to the ISP bootloader over a serial port, USB-HID
// or the built-in simulator.
package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"

	"ispboot/protocol"
)

// Context is passed to every subcommand.
type Context struct {
	ctx context.Context
	out *output
}

var CLI struct {
	Port    string        `short:"p" default:"/dev/ttyUSB0" help:"Serial device, 'hid', 'hid:N' or 'sim:<profile or file>'."`
	Baud    int           `default:"115200" help:"UART baud rate."`
	VID     number        `name:"vid" default:"0x0416" help:"USB vendor ID for HID."`
	PID     number        `name:"pid" default:"0x3F00" help:"USB product ID for HID."`
	Timeout time.Duration `default:"2s" help:"Response timeout."`
	Connect time.Duration `default:"10s" help:"How long to keep knocking with CONNECT."`
	Retries int           `default:"3" help:"Retries for timed-out commands."`
	Verbose bool          `short:"v" help:"Log every exchange."`
	NoColor bool          `name:"no-color" help:"Disable colored output."`

	Info     InfoCmd     `cmd:"" help:"Connect and print device information."`
	Read     ReadCmd     `cmd:"" help:"Read flash."`
	Erase    EraseCmd    `cmd:"" help:"Erase flash pages."`
	Program  ProgramCmd  `cmd:"" help:"Erase, program and verify an image."`
	Checksum ChecksumCmd `cmd:"" help:"Print the device CRC-16 of a range."`
	Config   ConfigCmd   `cmd:"" help:"Read or update the CONFIG words."`
	Run      RunCmd      `cmd:"" help:"Leave ISP and start APROM or LDROM."`
	Reset    ResetCmd    `cmd:"" help:"Reset into the image CONFIG selects."`
	Profiles ProfilesCmd `cmd:"" help:"List built-in simulator profiles."`
	Devices  DevicesCmd  `cmd:"" help:"List attached USB-HID ISP devices."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("isp-host"),
		kong.Description("NuMicro ISP host tool (protocol "+protocol.Version+")"),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, "/etc/isp-host.json", "~/.config/isp-host.json"),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := kctx.Run(&Context{
		ctx: ctx,
		out: newOutput(os.Stdout, CLI.Verbose, CLI.NoColor),
	})
	kctx.FatalIfErrorf(err)
}
