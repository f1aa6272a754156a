package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/linkage-api/internal/service"
)

type resolveFunc func(ctx context.Context, r *service.ResolverService, key string) (interface{}, error)

func newResolveCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Follow a relationship chain through the identity store",
	}
	cmd.AddCommand(
		resolveLeaf(opts, "children", "Children of the parent registered with an email", "email",
			func(ctx context.Context, r *service.ResolverService, email string) (interface{}, error) {
				return r.ResolveUserToChildren(ctx, email)
			}),
		resolveLeaf(opts, "classrooms", "Classrooms of the teacher registered with an email", "email",
			func(ctx context.Context, r *service.ResolverService, email string) (interface{}, error) {
				return r.ResolveUserToClassrooms(ctx, email)
			}),
		resolveLeaf(opts, "profile", "Profile owned by the user registered with an email", "email",
			func(ctx context.Context, r *service.ResolverService, email string) (interface{}, error) {
				profile, err := r.ResolveUserToProfile(ctx, email)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"entityType": profile.Collection().EntityType(), "profile": profile}, nil
			}),
		resolveLeaf(opts, "guardian", "Parent user of a child profile", "child",
			func(ctx context.Context, r *service.ResolverService, id string) (interface{}, error) {
				return r.ResolveChildToUser(ctx, id)
			}),
		resolveLeaf(opts, "teacher", "Teacher user of a classroom", "classroom",
			func(ctx context.Context, r *service.ResolverService, id string) (interface{}, error) {
				return r.ResolveClassroomToUser(ctx, id)
			}),
		newResolvePathCmd(opts),
	)
	return cmd
}

func resolveLeaf(opts *rootOptions, use, short, flag string, run resolveFunc) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(cmd, func(ctx context.Context, s *session) error {
				result, err := run(ctx, service.NewResolverService(s.store, nil, s.logger), key)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&key, flag, "", fmt.Sprintf("%s to start from", flag))
	_ = cmd.MarkFlagRequired(flag)
	return cmd
}

func newResolvePathCmd(opts *rootOptions) *cobra.Command {
	names := make([]string, 0, len(service.BuiltinPaths()))
	for name := range service.BuiltinPaths() {
		names = append(names, name)
	}
	sort.Strings(names)

	var key string
	cmd := &cobra.Command{
		Use:       "path NAME",
		Short:     "Print every hop of a built-in path",
		Long:      "Print every hop of a built-in path. Known paths: " + strings.Join(names, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ctx context.Context, s *session) error {
				chain, err := service.NewResolverService(s.store, nil, s.logger).ResolvePath(ctx, args[0], key)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), chain)
			})
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "lookup key for the first hop")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
