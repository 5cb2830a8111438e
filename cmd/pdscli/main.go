package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bluesky-social/indigo/atproto/atcrypto"
	"github.com/pdscore/go-pdscore/canonical"
	"github.com/pdscore/go-pdscore/identity"
	"github.com/pdscore/go-pdscore/pdsutil"
	"github.com/pdscore/go-pdscore/signing"

	"github.com/urfave/cli/v3"
)

func main() {
	app := cli.Command{
		Name:  "pdscli",
		Usage: "inspect DID documents and canonically encode records",
	}
	app.Commands = []*cli.Command{
		{
			Name:      "did",
			Usage:     "print the DID of a DID document (file argument, or stdin)",
			ArgsUsage: "[<doc.json>]",
			Action:    runDID,
		},
		{
			Name:      "handle",
			Usage:     "print the handle claimed by a DID document",
			ArgsUsage: "[<doc.json>]",
			Action:    runHandle,
		},
		{
			Name:      "key",
			Usage:     "print the verification material for a key id in a DID document",
			ArgsUsage: "[<doc.json>]",
			Action:    runKey,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "id",
					Usage: "verification method fragment",
					Value: identity.AtprotoKeyID,
				},
			},
		},
		{
			Name:   "encode",
			Usage:  "canonically encode a JSON record from stdin; prints hex DAG-CBOR and CID",
			Action: runEncode,
		},
		{
			Name:      "decode",
			Usage:     "decode hex DAG-CBOR back to JSON",
			ArgsUsage: "<hex>",
			Action:    runDecode,
		},
		{
			Name:   "token",
			Usage:  "print the URL-safe token for a JSON value from stdin",
			Action: runToken,
		},
		{
			Name:   "random",
			Usage:  "print a random 32 character alphanumeric token",
			Action: runRandom,
		},
		{
			Name:   "now",
			Usage:  "print the current time with millisecond precision",
			Action: runNow,
		},
		{
			Name:   "keygen",
			Usage:  "generate a fresh private key, printed to stdout as a multibase string",
			Action: runKeyGen,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "type",
					Usage: "key type; one of 'K-256' or 'P-256'",
					Value: "K-256",
				},
			},
		},
		{
			Name:   "sign",
			Usage:  "sign the canonical encoding of a JSON record from stdin",
			Action: runSign,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "private-key",
					Usage:   "signing key (multibase syntax)",
					Sources: cli.EnvVars("PDS_PRIVATE_KEY"),
				},
			},
		},
		{
			Name:      "verify",
			Usage:     "verify a signature over a JSON record from stdin against a DID document",
			ArgsUsage: "<doc.json> <signature>",
			Action:    runVerify,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "id",
					Usage: "verification method fragment",
					Value: identity.AtprotoKeyID,
				},
			},
		},
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(h))
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Println("Error:", err)
		os.Exit(-1)
	}
}

func readDoc(cmd *cli.Command) (*identity.Doc, error) {
	var b []byte
	var err error
	if path := cmd.Args().First(); path != "" && path != "-" {
		b, err = os.ReadFile(path)
	} else {
		b, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, err
	}
	return identity.ParseDoc(b)
}

func readRecord() (any, error) {
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, err
	}
	return canonical.NormalizeJSON(b)
}

func runDID(ctx context.Context, cmd *cli.Command) error {
	doc, err := readDoc(cmd)
	if err != nil {
		return err
	}
	fmt.Println(identity.DID(doc))
	return nil
}

func runHandle(ctx context.Context, cmd *cli.Command) error {
	doc, err := readDoc(cmd)
	if err != nil {
		return err
	}
	handle, ok := identity.Handle(doc)
	if !ok {
		return fmt.Errorf("no handle in document for %s", doc.ID)
	}
	fmt.Println(handle)
	return nil
}

func runKey(ctx context.Context, cmd *cli.Command) error {
	doc, err := readDoc(cmd)
	if err != nil {
		return err
	}
	vm, ok := identity.VerificationMaterialFor(doc, cmd.String("id"))
	if !ok {
		return fmt.Errorf("no verification material %q in document for %s", cmd.String("id"), doc.ID)
	}
	fmt.Printf("type:\t%s\nmultibase:\t%s\n", vm.Type, vm.PublicKeyMultibase)
	if didKey, err := vm.DIDKey(); err == nil {
		fmt.Printf("did:key:\t%s\n", didKey)
	} else {
		slog.Debug("could not derive did:key", "error", err)
	}
	return nil
}

func runEncode(ctx context.Context, cmd *cli.Command) error {
	node, err := readRecord()
	if err != nil {
		return err
	}
	b, err := canonical.Encode(node)
	if err != nil {
		return err
	}
	c, err := canonical.CIDForBytes(b)
	if err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(b))
	fmt.Println(c.String())
	return nil
}

func runDecode(ctx context.Context, cmd *cli.Command) error {
	s := strings.TrimSpace(cmd.Args().First())
	if s == "" {
		return fmt.Errorf("need to provide hex bytes as an argument")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	node, err := canonical.Unmarshal(b)
	if err != nil {
		return err
	}
	js, err := canonical.ToJSON(node)
	if err != nil {
		return err
	}
	fmt.Println(string(js))
	return nil
}

func runToken(ctx context.Context, cmd *cli.Command) error {
	node, err := readRecord()
	if err != nil {
		return err
	}
	tok, err := canonical.URLSafeToken(node)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func runRandom(ctx context.Context, cmd *cli.Command) error {
	tok, err := pdsutil.RandomToken(pdsutil.SecureRandom)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func runNow(ctx context.Context, cmd *cli.Command) error {
	fmt.Println(pdsutil.Now(pdsutil.SystemClock{}))
	return nil
}

func runKeyGen(ctx context.Context, cmd *cli.Command) error {
	t := cmd.String("type")
	switch t {
	case "K-256", "K256", "k256":
		privkey, err := atcrypto.GeneratePrivateKeyK256()
		if err != nil {
			return err
		}
		fmt.Println(privkey.Multibase())
	case "P-256", "P256", "p256":
		privkey, err := atcrypto.GeneratePrivateKeyP256()
		if err != nil {
			return err
		}
		fmt.Println(privkey.Multibase())
	default:
		return fmt.Errorf("unknown key type: %s", t)
	}
	return nil
}

func runSign(ctx context.Context, cmd *cli.Command) error {
	privStr := cmd.String("private-key")
	if privStr == "" {
		return fmt.Errorf("private key is required")
	}
	priv, err := atcrypto.ParsePrivateMultibase(privStr)
	if err != nil {
		return err
	}
	record, err := readRecord()
	if err != nil {
		return err
	}
	sig, err := signing.Sign(priv, record)
	if err != nil {
		return err
	}
	fmt.Println(sig)
	return nil
}

func runVerify(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("expected <doc.json> <signature>")
	}
	b, err := os.ReadFile(cmd.Args().Get(0))
	if err != nil {
		return err
	}
	doc, err := identity.ParseDoc(b)
	if err != nil {
		return err
	}
	record, err := readRecord()
	if err != nil {
		return err
	}
	if err := signing.Verify(doc, cmd.String("id"), record, cmd.Args().Get(1)); err != nil {
		return err
	}
	fmt.Println("valid")
	return nil
}
