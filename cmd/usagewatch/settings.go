package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/usagewatch/pkg/usage"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change notification settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the stored settings",
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := commandContext(cmd)
				defer cancel()

				settings, err := newClient().Settings(ctx)
				if err != nil {
					return fmt.Errorf("failed to read settings: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), settings)
			},
		},
		&cobra.Command{
			Use:   "set key=value...",
			Short: "Change settings fields",
			Long: `Change one or more settings fields. Keys: badgeDisplay (session|weekly),
periodicEnabled, periodicInterval (minutes), thresholdEnabled,
sessionThreshold, weeklyThreshold (0-100).`,
			Args: cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := commandContext(cmd)
				defer cancel()

				c := newClient()
				settings, err := c.Settings(ctx)
				if err != nil {
					return fmt.Errorf("failed to read settings: %w", err)
				}
				for _, arg := range args {
					key, value, ok := strings.Cut(arg, "=")
					if !ok {
						return fmt.Errorf("expected key=value, got %q", arg)
					}
					if err := applySetting(&settings, key, value); err != nil {
						return err
					}
				}
				if err := settings.Validate(); err != nil {
					return err
				}

				res, err := c.UpdateSettings(ctx, settings)
				if err != nil {
					return err
				}
				if !res.Success {
					return errors.New(res.Error)
				}
				return writeJSON(cmd.OutOrStdout(), settings)
			},
		},
	)
	return cmd
}

// applySetting sets one field by its record name.
func applySetting(s *usage.Settings, key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "badgeDisplay":
		s.BadgeDisplay = usage.BadgeDisplay(value)
		return nil
	case "periodicEnabled":
		return parseBool(key, value, &s.PeriodicEnabled)
	case "thresholdEnabled":
		return parseBool(key, value, &s.ThresholdEnabled)
	case "periodicInterval":
		return parseInt(key, value, &s.PeriodicIntervalMinutes)
	case "sessionThreshold":
		return parseInt(key, value, &s.SessionThreshold)
	case "weeklyThreshold":
		return parseInt(key, value, &s.WeeklyThreshold)
	case "thresholdCheckInterval":
		return fmt.Errorf("%s is fixed at %d minutes", key, usage.DefaultThresholdCheckInterval)
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
}

func parseBool(key, value string, dst *bool) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: expected true or false, got %q", key, value)
	}
	*dst = b
	return nil
}

func parseInt(key, value string, dst *int) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: expected a whole number, got %q", key, value)
	}
	*dst = n
	return nil
}
