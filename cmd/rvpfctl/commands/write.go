package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rob-gra/rvpf-protocol-core/point"
	"github.com/rob-gra/rvpf-protocol-core/rvpfclient"
)

var writeFlags remoteFlags

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write a single point to a DNP3 outstation or CIP controller",
	RunE:  runWrite,
}

func init() {
	addRemoteFlags(writeCmd, &writeFlags)
	writeCmd.Flags().StringVar(&writeFlags.value, "value", "", "value to write")
	writeCmd.Flags().StringVar(&writeFlags.valueType, "type", "int", "value type: bool, int, or float")
}

func runWrite(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	driver, closeFn, err := connectDriver(ctx, &writeFlags)
	if err != nil {
		return err
	}
	defer closeFn()

	v, err := parseValue(writeFlags.valueType, writeFlags.value)
	if err != nil {
		return err
	}

	p := pointFromFlags(&writeFlags)
	pv := point.NewPointValue(p.UUID, point.FromTime(time.Now()), v)
	if err := driver.WritePoints(ctx, []rvpfclient.PointWrite{{Point: p, Value: pv}}); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	fmt.Printf("%s <- %s\n", p, v)
	return nil
}

func parseValue(valueType, raw string) (point.Value, error) {
	switch valueType {
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return point.Value{}, fmt.Errorf("invalid bool value %q: %w", raw, err)
		}
		return point.BoolValue(b), nil
	case "float":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return point.Value{}, fmt.Errorf("invalid float value %q: %w", raw, err)
		}
		return point.FloatValue(f), nil
	case "int":
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return point.Value{}, fmt.Errorf("invalid int value %q: %w", raw, err)
		}
		return point.IntValue(i), nil
	default:
		return point.Value{}, fmt.Errorf("unknown --type %q, want bool, int, or float", valueType)
	}
}
