package impl

import (
	"testing"

	"devicemail/internal/domain"
)

func TestPasswordHashVerify(t *testing.T) {
	pw := NewPasswordServiceWithParams(Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16})

	if _, _, _, _, _, err := pw.Hash(""); err != ErrEmptyPassword {
		t.Fatalf("empty password: got %v", err)
	}

	hash, salt, params, algo, ver, err := pw.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cred := &domain.PasswordCredential{Algo: algo, Hash: hash, Salt: salt, ParamsJSON: params, PasswordVer: ver}

	if rehash, ok := pw.Verify("correct horse", cred); !ok || rehash {
		t.Fatalf("verify = (rehash %v, ok %v)", rehash, ok)
	}
	if _, ok := pw.Verify("wrong horse", cred); ok {
		t.Fatalf("wrong password verified")
	}

	stronger := NewPasswordServiceWithParams(Argon2Params{Time: 2, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	if rehash, ok := stronger.Verify("correct horse", cred); !ok || !rehash {
		t.Fatalf("policy change should request rehash, got (rehash %v, ok %v)", rehash, ok)
	}
}
