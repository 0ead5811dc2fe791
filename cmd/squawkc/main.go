// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/squawk-vm/translator"
	"github.com/squawk-vm/translator/log"
	"github.com/squawk-vm/translator/signature"
)

var (
	fast             bool
	noSignatureCheck bool
	verbose          bool
	classpathRoot    string
)

func prettyPrint(v interface{}) string {
	buf, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		log.Default.Errorf("JSON marshal error: %v", err)
		return fmt.Sprintf("%+v", v)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf, "", "\t"); err != nil {
		return string(buf)
	}
	return out.String()
}

func loadOne(path string) (*classfile.Klass, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	root := classpathRoot
	if root == "" {
		root = filepath.Dir(path)
	}
	reg := classfile.NewRegistry(classfile.DirOpener{Root: root}, nil)
	reg.DefinePrimitives()

	opts := classfile.Options{Fast: fast, DisableSignatureValidation: noSignatureCheck, SignatureProvider: signature.PKCS7Provider{}}
	loader := classfile.NewClassFileLoader(reg, opts)

	k, err := loader.Parse(path, data)
	if err != nil {
		return nil, err
	}
	return k, nil
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <classfile> [classfile...]",
		Short: "Translate one or more JVM class files and print the resulting Klass as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if verbose {
					log.Default.Infof("processing %s", path)
				}
				k, err := loadOne(path)
				if err != nil {
					log.Default.Errorf("%s: %v", path, err)
					continue
				}
				fmt.Println(prettyPrint(k))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fast, "fast", false, "skip method-body verification")
	cmd.Flags().BoolVar(&noSignatureCheck, "no-signature-check", false, "skip Trusted attribute signature validation")
	cmd.Flags().StringVar(&classpathRoot, "classpath", "", "root directory used to resolve referenced classes (defaults to each file's own directory)")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <classfile> [classfile...]",
		Short: "Parse and verify class files, reporting only pass/fail",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				if _, err := loadOne(path); err != nil {
					fmt.Printf("%s: FAIL: %v\n", path, err)
					failed++
					continue
				}
				fmt.Printf("%s: OK\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d class files failed verification", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&classpathRoot, "classpath", "", "root directory used to resolve referenced classes")
	return cmd
}

func main() {
	root := &cobra.Command{
		Use:   "squawkc",
		Short: "squawkc translates JVM class files into the Squawk VM's Minfo representation",
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress to stderr")
	root.AddCommand(newDumpCmd(), newVerifyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
