package mocks

//go:generate mockery --name Queue --srcpkg github.com/aevon-lab/trackpipe/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
//go:generate mockery --name KVStore --srcpkg github.com/aevon-lab/trackpipe/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
//go:generate mockery --name Pipeline --srcpkg github.com/aevon-lab/trackpipe/internal/bridge --output ./bridge --outpkg bridgemocks --with-expecter
