package state

var (
	custodyRecordPrefix  = []byte("custody/record/")
	custodyIndexKeyBytes = []byte("custody/index")
	accountRecordPrefix  = []byte("account/record/")
	vaultSeed            = []byte("custody/vault")
)
