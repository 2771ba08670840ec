package main

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nao1215/ringscan/internal/config"
	"github.com/nao1215/ringscan/internal/trace"
	"github.com/nao1215/ringscan/pkg/geometry"
	"github.com/nao1215/ringscan/pkg/scan"
)

// NewQuantizeCmd creates the quantize command.
func NewQuantizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quantize",
		Short: "Show the ring and slot a camera pose maps to",
		Long: `Quantize computes which ring a camera is aimed at and which of the 72
angular slots it occupies, relative to an anchor. It is a debugging aid for
trace authoring and ring tuning.

Vectors are given as comma separated x,y,z in meters. Without --forward or
--look-at the camera looks at the anchor.

Examples:
  # Camera half a meter in front of an anchor at the origin
  ringscan quantize --camera 0.5,0,0

  # Rotated anchor, camera looking past the object
  ringscan quantize --anchor 1,0,2 --yaw 90 --camera 1.5,0.3,2 --forward 0,0,-1

  # Ring layout from a configuration file, JSON output
  ringscan quantize -c myconfig.yaml --camera 0,0.25,0.4 --json`,
		Args: cobra.NoArgs,
		RunE: runQuantizeCmd,
	}

	cmd.Flags().Float64Slice("anchor", []float64{0, 0, 0},
		"Anchor position x,y,z")
	cmd.Flags().Float64("yaw", 0,
		"Anchor rotation about the vertical axis in degrees")
	cmd.Flags().Float64Slice("camera", nil,
		"Camera position x,y,z (required)")
	cmd.Flags().Float64Slice("forward", nil,
		"Camera viewing direction x,y,z")
	cmd.Flags().Float64Slice("look-at", nil,
		"Point the camera looks at x,y,z")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .ringscan in current or home directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")

	_ = cmd.MarkFlagRequired("camera")
	cmd.MarkFlagsMutuallyExclusive("forward", "look-at")

	return cmd
}

// quantizeResult is the output of the quantize command.
type quantizeResult struct {
	Anchor geometry.Pose         `json:"anchor"`
	Camera geometry.CameraSample `json:"camera"`
	Rings  geometry.RingConfig   `json:"rings"`
	Valid  bool                  `json:"valid"`

	Focus          string  `json:"focus"`
	Slot           int     `json:"slot"`
	AzimuthDegrees float64 `json:"azimuth_degrees"`
	LocalHeight    float64 `json:"local_height"`
	// AngleToAnchor is nil when the camera direction is degenerate.
	AngleToAnchor *float64 `json:"angle_to_anchor,omitempty"`
	InFocus       bool     `json:"in_focus"`
	// Marker is the world position of the targeted marker.
	Marker *r3.Vec `json:"marker,omitempty"`
}

// runQuantizeCmd executes the quantize command.
func runQuantizeCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	anchorPos, err := vecFlag(cmd, "anchor")
	if err != nil {
		return err
	}
	yaw, err := flags.GetFloat64("yaw")
	if err != nil {
		return err
	}
	cameraPos, err := vecFlag(cmd, "camera")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}

	cfg := config.NewConfig()
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return err
	}
	if err := loadConfigFile(cfg); err != nil {
		return err
	}
	scanCfg, _, err := cfg.SessionConfig("")
	if err != nil {
		return err
	}

	ev := trace.CaptureEvent{Position: trace.Vec3{cameraPos.X, cameraPos.Y, cameraPos.Z}}
	if flags.Changed("forward") {
		v, err := vecFlag(cmd, "forward")
		if err != nil {
			return err
		}
		ev.Forward = &trace.Vec3{v.X, v.Y, v.Z}
	}
	if flags.Changed("look-at") {
		v, err := vecFlag(cmd, "look-at")
		if err != nil {
			return err
		}
		ev.LookAt = &trace.Vec3{v.X, v.Y, v.Z}
	}

	anchor := trace.AnchorEvent{
		Position: trace.Vec3{anchorPos.X, anchorPos.Y, anchorPos.Z},
		Yaw:      yaw,
	}.Pose()

	result := quantize(scanCfg, anchor, *ev.Camera(anchor.Position))

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	writeQuantizeText(cmd.OutOrStdout(), result)
	return nil
}

// quantize runs the quantizer and collects the result for output.
func quantize(cfg scan.Config, anchor geometry.Pose, cam geometry.CameraSample) quantizeResult {
	qz := geometry.NewQuantizer(cfg.Rings)
	q := qz.Quantize(anchor, cam)

	result := quantizeResult{
		Anchor:         anchor,
		Camera:         cam,
		Rings:          cfg.Rings,
		Valid:          cam.Valid(),
		Focus:          q.Focus.String(),
		Slot:           q.Slot,
		AzimuthDegrees: q.AzimuthDegrees,
		LocalHeight:    q.LocalHeight,
	}
	if !math.IsNaN(q.AngleToAnchor) {
		angle := q.AngleToAnchor
		result.AngleToAnchor = &angle
		result.InFocus = angle < cfg.Rings.AngleThreshold
	}
	if ring, ok := q.Ring(); ok {
		m := qz.WorldMarkerPosition(anchor, ring, q.Slot)
		result.Marker = &m
	}
	return result
}

func writeQuantizeText(out io.Writer, r quantizeResult) {
	fmt.Fprintf(out, "Camera:       (%.3f, %.3f, %.3f)", r.Camera.Position.X, r.Camera.Position.Y, r.Camera.Position.Z)
	if !r.Valid {
		fmt.Fprint(out, "  [invalid: captures would be rejected as no_camera_data]")
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Focus:        %s\n", r.Focus)
	fmt.Fprintf(out, "Slot:         %d of %d\n", r.Slot, geometry.SlotCount)
	fmt.Fprintf(out, "Azimuth:      %.2f°\n", r.AzimuthDegrees)
	fmt.Fprintf(out, "Local height: %.3f m (split at %.3f m)\n", r.LocalHeight, r.Rings.SplitHeight())
	if r.AngleToAnchor != nil {
		fmt.Fprintf(out, "Angle:        %.4f rad (%.1f°), threshold %.4f rad\n",
			*r.AngleToAnchor, *r.AngleToAnchor*180/math.Pi, r.Rings.AngleThreshold)
	} else {
		fmt.Fprintln(out, "Angle:        undefined")
	}
	if r.Marker != nil {
		fmt.Fprintf(out, "Marker:       (%.3f, %.3f, %.3f)\n", r.Marker.X, r.Marker.Y, r.Marker.Z)
	}
}

// vecFlag reads a three component vector flag.
func vecFlag(cmd *cobra.Command, name string) (r3.Vec, error) {
	v, err := cmd.Flags().GetFloat64Slice(name)
	if err != nil {
		return r3.Vec{}, err
	}
	if len(v) != 3 {
		return r3.Vec{}, fmt.Errorf("--%s needs three comma separated values, got %d", name, len(v))
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}
