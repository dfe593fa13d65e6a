package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-asconlink/protocol"
	"github.com/moffa90/go-asconlink/register"
)

func newRegCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reg",
		Short: "Board register commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "addr HEX",
		Short: "Select a register address",
		Args:  cobra.ExactArgs(1),
		RunE: a.withRegisters(func(cmd *cobra.Command, c *register.Client, args []string) error {
			v, err := parseByte("address", args[0])
			if err != nil {
				return err
			}
			if err := c.SetAddress(cmd.Context(), v); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Address set to 0x%02X\n", v)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "write HEX",
		Short: "Write a value at the selected address",
		Args:  cobra.ExactArgs(1),
		RunE: a.withRegisters(func(cmd *cobra.Command, c *register.Client, args []string) error {
			v, err := parseByte("value", args[0])
			if err != nil {
				return err
			}
			if err := c.WriteValue(cmd.Context(), v); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote 0x%02X\n", v)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "read",
		Short: "Read the value at the selected address",
		Args:  cobra.NoArgs,
		RunE: a.withRegisters(func(cmd *cobra.Command, c *register.Client, _ []string) error {
			v, err := c.ReadValue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Value: 0x%02X\n", v)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "display",
		Short: "Show the selected register on the LEDs",
		Args:  cobra.NoArgs,
		RunE: a.withRegisters(func(cmd *cobra.Command, c *register.Client, _ []string) error {
			if err := c.DisplayOnLEDs(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Displayed on LEDs")
			return nil
		}),
	})

	var cycles int
	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Run register write/read-back cycles",
		Args:  cobra.NoArgs,
		RunE: a.withRegisters(func(cmd *cobra.Command, c *register.Client, _ []string) error {
			if cycles < 1 {
				return fmt.Errorf("--cycles must be at least 1, got %d", cycles)
			}
			results, err := c.RunCycles(cmd.Context(), cycles)
			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range results {
				status := "OK"
				if !r.Match() {
					status = "MISMATCH"
					failed++
				}
				fmt.Fprintf(out, "Cycle %d/%d: address 0x%02X wrote 0x%02X read 0x%02X %s\n",
					r.Cycle+1, cycles, r.Address, r.Written, r.Read, status)
			}
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d cycles read back a different value", failed, cycles)
			}
			return nil
		}),
	}
	testCmd.Flags().IntVar(&cycles, "cycles", 5, "number of cycles")
	cmd.AddCommand(testCmd)

	return cmd
}

type registerFunc func(cmd *cobra.Command, c *register.Client, args []string) error

// withRegisters opens the board around fn.
func (a *app) withRegisters(fn registerFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, link, err := a.openRegisters()
		if err != nil {
			return err
		}
		defer link.Close()
		return fn(cmd, c, args)
	}
}

func parseByte(field, s string) (uint8, error) {
	b, err := protocol.ParseHex(field, s)
	if err != nil {
		return 0, err
	}
	if len(b) != 1 {
		return 0, &protocol.ValidationError{Field: field, Expected: 1, Actual: len(b)}
	}
	return b[0], nil
}
