// Package isp drives an ISP bootloader from the host: connect, identify,
// read, erase, program with CRC verification, CONFIG access and hand-off
// to the application.
//
// Example:
//
//	port, _ := serial.Open(serial.DefaultConfig("/dev/ttyUSB0"))
//	prog := isp.New(port, isp.WithLogger(myLogger))
//	defer prog.Close()
//
//	if _, err := prog.Connect(ctx); err != nil {
//	    return err
//	}
//	if err := prog.Program(ctx, 0, image); err != nil {
//	    return err
//	}
//	return prog.Run(ctx, core.BootAPROM)
package isp
